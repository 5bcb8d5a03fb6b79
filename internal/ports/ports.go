package ports

import (
	"context"

	"worksched/internal/core"
)

// Ports for outbound adapters. The pipeline and handlers depend on these
// contracts, never on a concrete backend.
type (
	JobStore interface {
		CreateJob(ctx context.Context, p core.Property) (core.Job, error)
		ListJobs(ctx context.Context) ([]core.Job, error)
		GetJob(ctx context.Context, id int64) (core.Job, error)
	}

	// LineItemStore persists schedule lines. BulkInsertLineItems is atomic:
	// either every draft of an upload is inserted or none are.
	LineItemStore interface {
		BulkInsertLineItems(ctx context.Context, jobID int64, drafts []core.LineItemDraft) error
		ListLineItems(ctx context.Context, jobID int64) ([]core.LineItem, error)
		GetLineItem(ctx context.Context, id int64) (core.LineItem, error)
		UpdateLineItem(ctx context.Context, id int64, patch core.LineItemPatch) (core.LineItem, error)
	}

	// ReferenceReader exposes read-only classification reference data.
	ReferenceReader interface {
		ListCategories(ctx context.Context) ([]string, error)
		ListContractors(ctx context.Context) ([]string, error)
		ListClassificationRules(ctx context.Context) ([]core.ClassificationRule, error)
		ListRegionalDefaults(ctx context.Context) ([]core.RegionalDefault, error)
	}

	// DashboardReader provides the aggregate spend figures for the dashboard.
	DashboardReader interface {
		ReadSpendOverview(ctx context.Context) (core.SpendOverview, error)
	}

	// EvidenceRecorder stores the reference row for an uploaded attachment.
	// The binary payload itself goes to the evidence file store.
	EvidenceRecorder interface {
		AddEvidence(ctx context.Context, ev core.Evidence) (core.Evidence, error)
		GetEvidence(ctx context.Context, id int64) (core.Evidence, error)
	}
)
