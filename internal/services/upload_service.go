package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"worksched/internal/classify"
	"worksched/internal/core"
	"worksched/internal/ports"
	"worksched/internal/xlsx"
)

// Publisher is the slice of the AMQP client the services need.
type Publisher interface {
	PublishJobUploaded(ctx context.Context, jobID int64, itemCount int) error
	PublishItemCompleted(ctx context.Context, itemID int64) error
}

// UploadStore is the storage surface the upload flow uses.
type UploadStore interface {
	ports.JobStore
	ports.LineItemStore
	ports.ReferenceReader
}

// UploadService runs the end-to-end upload flow: parse the workbook,
// classify and price every row, create the job, and bulk-insert the line
// items.
type UploadService struct {
	store     UploadStore
	publisher Publisher

	// DefaultRegion is used when the upload form leaves the region blank.
	DefaultRegion string
}

func NewUploadService(store UploadStore, publisher Publisher) *UploadService {
	return &UploadService{
		store:     store,
		publisher: publisher,
	}
}

// UploadResult summarises a processed Schedule of Works.
type UploadResult struct {
	Job         core.Job
	ItemCount   int
	ReviewCount int
}

// ProcessUpload handles one uploaded workbook. The file is fully parsed and
// classified before anything is written, so a bad workbook never creates a
// job. Line items are inserted atomically after the job row exists.
func (s *UploadService) ProcessUpload(ctx context.Context, workbook io.Reader, property core.Property) (UploadResult, error) {
	rows, err := xlsx.ParseSchedule(workbook)
	if err != nil {
		return UploadResult{}, fmt.Errorf("parse schedule: %w", err)
	}

	if property.Region == "" {
		property.Region = s.DefaultRegion
	}

	ref, err := s.loadReference(ctx)
	if err != nil {
		return UploadResult{}, fmt.Errorf("load reference data: %w", err)
	}

	drafts := classify.ProcessRows(rows, ref, property.Region)

	job, err := s.store.CreateJob(ctx, property)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create job: %w", err)
	}

	if err := s.store.BulkInsertLineItems(ctx, job.ID, drafts); err != nil {
		// The job row survives without items; the dashboard shows it empty
		// rather than silently losing the upload.
		return UploadResult{}, fmt.Errorf("insert line items for job %d: %w", job.ID, err)
	}

	reviewCount := 0
	for _, d := range drafts {
		if d.NeedsReview {
			reviewCount++
		}
	}

	slog.InfoContext(ctx, "Schedule uploaded",
		"job_id", job.ID,
		"items", len(drafts),
		"needs_review", reviewCount,
		"region", property.Region)

	if s.publisher != nil {
		if err := s.publisher.PublishJobUploaded(ctx, job.ID, len(drafts)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish job uploaded message",
				"job_id", job.ID, "error", err)
			// Don't fail the request, the upload itself succeeded.
		}
	}

	return UploadResult{Job: job, ItemCount: len(drafts), ReviewCount: reviewCount}, nil
}

// loadReference fetches rules and regional defaults concurrently.
func (s *UploadService) loadReference(ctx context.Context) (classify.Reference, error) {
	var ref classify.Reference

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rules, err := s.store.ListClassificationRules(ctx)
		if err != nil {
			return fmt.Errorf("classification rules: %w", err)
		}
		ref.Rules = rules
		return nil
	})
	g.Go(func() error {
		defaults, err := s.store.ListRegionalDefaults(ctx)
		if err != nil {
			return fmt.Errorf("regional defaults: %w", err)
		}
		ref.Defaults = defaults
		return nil
	})

	if err := g.Wait(); err != nil {
		return classify.Reference{}, err
	}
	return ref, nil
}
