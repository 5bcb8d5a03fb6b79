package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"worksched/internal/core"
	"worksched/internal/ports"
)

// ItemStore is the storage surface the line item flow uses.
type ItemStore interface {
	ports.LineItemStore
	ports.EvidenceRecorder
}

// FileStore persists evidence payloads outside the database.
type FileStore interface {
	Save(itemID int64, filename string, r io.Reader) (relPath string, size int64, err error)
	Open(relPath string) (io.ReadCloser, error)
}

// ItemService owns line item updates and evidence capture.
type ItemService struct {
	store     ItemStore
	files     FileStore
	publisher Publisher
}

func NewItemService(store ItemStore, files FileStore, publisher Publisher) *ItemService {
	return &ItemService{
		store:     store,
		files:     files,
		publisher: publisher,
	}
}

// UpdateItem applies a partial update. Attaching a contractor to an
// unassigned item promotes it to Assigned unless the patch sets a status
// explicitly.
func (s *ItemService) UpdateItem(ctx context.Context, id int64, patch core.LineItemPatch) (core.LineItem, error) {
	if err := patch.Validate(); err != nil {
		return core.LineItem{}, err
	}

	if patch.Assignee != nil && *patch.Assignee != "" && patch.Status == nil {
		current, err := s.store.GetLineItem(ctx, id)
		if err != nil {
			return core.LineItem{}, fmt.Errorf("get line item %d: %w", id, err)
		}
		if current.Status == core.StatusUnassigned {
			assigned := core.StatusAssigned
			patch.Status = &assigned
		}
	}

	item, err := s.store.UpdateLineItem(ctx, id, patch)
	if err != nil {
		return core.LineItem{}, err
	}

	if item.Status == core.StatusCompleted && patch.Status != nil {
		s.publishCompleted(ctx, item.ID)
	}

	return item, nil
}

// AttachEvidence saves the payload to the file store and records the
// reference row.
func (s *ItemService) AttachEvidence(ctx context.Context, itemID int64, kind, filename string, r io.Reader) (core.Evidence, error) {
	// Reject unknown items before touching the disk.
	if _, err := s.store.GetLineItem(ctx, itemID); err != nil {
		return core.Evidence{}, fmt.Errorf("get line item %d: %w", itemID, err)
	}

	relPath, size, err := s.files.Save(itemID, filename, r)
	if err != nil {
		return core.Evidence{}, fmt.Errorf("save evidence file: %w", err)
	}

	ev, err := s.store.AddEvidence(ctx, core.Evidence{
		ItemID:    itemID,
		Kind:      kind,
		FilePath:  relPath,
		Filename:  filename,
		SizeBytes: size,
	})
	if err != nil {
		return core.Evidence{}, fmt.Errorf("record evidence: %w", err)
	}
	return ev, nil
}

// OpenEvidence returns the recorded row and the stored payload for download.
// The caller closes the reader.
func (s *ItemService) OpenEvidence(ctx context.Context, evidenceID int64) (core.Evidence, io.ReadCloser, error) {
	ev, err := s.store.GetEvidence(ctx, evidenceID)
	if err != nil {
		return core.Evidence{}, nil, fmt.Errorf("get evidence %d: %w", evidenceID, err)
	}

	rc, err := s.files.Open(ev.FilePath)
	if err != nil {
		return core.Evidence{}, nil, fmt.Errorf("open evidence file: %w", err)
	}
	return ev, rc, nil
}

func (s *ItemService) publishCompleted(ctx context.Context, itemID int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping completion message")
		return
	}
	if err := s.publisher.PublishItemCompleted(ctx, itemID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish item completed message",
			"item_id", itemID, "error", err)
		// Don't fail the request, the update itself succeeded.
	}
}
