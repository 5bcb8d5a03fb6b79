package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"worksched/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateJob implements ports.JobStore
func (r *SQLiteRepository) CreateJob(ctx context.Context, p core.Property) (core.Job, error) {
	id, err := r.queries.CreateJob(ctx, JobRow{
		InspectedBy:  p.InspectedBy,
		AddressLine1: p.AddressLine1,
		AddressLine2: p.AddressLine2,
		Town:         p.Town,
		Postcode:     p.Postcode,
		Region:       p.Region,
		KeyLocation:  p.KeyLocation,
		KeySafeCode:  p.KeySafeCode,
		OrderNo:      p.OrderNo,
		PropertyType: p.PropertyType,
		TenureType:   p.TenureType,
		Condition:    p.Condition,
		UPRN:         p.UPRN,
		Fund:         p.Fund,
		ClientName:   p.ClientName,
	})
	if err != nil {
		return core.Job{}, fmt.Errorf("create job: %w", err)
	}

	row, err := r.queries.GetJob(ctx, id)
	if err != nil {
		return core.Job{}, fmt.Errorf("read back job %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Job saved to SQLite",
		"job_id", id,
		"order_no", p.OrderNo,
		"region", p.Region)

	return jobFromRow(row), nil
}

// GetJob implements ports.JobStore
func (r *SQLiteRepository) GetJob(ctx context.Context, id int64) (core.Job, error) {
	row, err := r.queries.GetJob(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Job{}, core.ErrNotFound
	}
	if err != nil {
		return core.Job{}, fmt.Errorf("get job %d: %w", id, err)
	}
	return jobFromRow(row), nil
}

// ListJobs implements ports.JobStore
func (r *SQLiteRepository) ListJobs(ctx context.Context) ([]core.Job, error) {
	rows, err := r.queries.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]core.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, jobFromRow(row))
	}
	return jobs, nil
}

// BulkInsertLineItems implements ports.LineItemStore. All drafts are written
// in one transaction so a failed upload never leaves a partial schedule.
func (r *SQLiteRepository) BulkInsertLineItems(ctx context.Context, jobID int64, drafts []core.LineItemDraft) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	categoryIDs, err := r.nameIndex(ctx, tx, `SELECT id, name FROM categories`)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	contractorIDs, err := r.nameIndex(ctx, tx, `SELECT id, company_name FROM contractors`)
	if err != nil {
		return fmt.Errorf("load contractors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO line_items (job_id, code, description, base_rate_pence,
			contract_rate_pence, unit, qty, total_pence, location, comments,
			category_id, assignee_contractor_id, status, needs_review, row_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare line item insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range drafts {
		categoryID, ok := categoryIDs[d.Category]
		if !ok {
			return fmt.Errorf("unknown category %q at row %d", d.Category, d.RowIndex)
		}
		assigneeID := sql.NullInt64{}
		if d.Assignee != "" {
			id, ok := contractorIDs[d.Assignee]
			if !ok {
				return fmt.Errorf("unknown contractor %q at row %d", d.Assignee, d.RowIndex)
			}
			assigneeID = sql.NullInt64{Int64: id, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, jobID, d.Code, d.Description,
			d.BaseRate.Pence, d.ContractRate.Pence, d.Unit, d.Qty, d.Total.Pence,
			d.Location, d.Comments, categoryID, assigneeID,
			string(d.Status), d.NeedsReview, d.RowIndex); err != nil {
			return fmt.Errorf("insert line item at row %d: %w", d.RowIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit line items: %w", err)
	}

	slog.InfoContext(ctx, "Line items saved to SQLite",
		"job_id", jobID,
		"count", len(drafts))
	return nil
}

// ListLineItems implements ports.LineItemStore
func (r *SQLiteRepository) ListLineItems(ctx context.Context, jobID int64) ([]core.LineItem, error) {
	rows, err := r.queries.ListLineItems(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list line items for job %d: %w", jobID, err)
	}

	items := make([]core.LineItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, lineItemFromRow(row))
	}
	return items, nil
}

// GetLineItem implements ports.LineItemStore
func (r *SQLiteRepository) GetLineItem(ctx context.Context, id int64) (core.LineItem, error) {
	row, err := r.queries.GetLineItem(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LineItem{}, core.ErrNotFound
	}
	if err != nil {
		return core.LineItem{}, fmt.Errorf("get line item %d: %w", id, err)
	}
	return lineItemFromRow(row), nil
}

// UpdateLineItem implements ports.LineItemStore
func (r *SQLiteRepository) UpdateLineItem(ctx context.Context, id int64, patch core.LineItemPatch) (core.LineItem, error) {
	if err := patch.Validate(); err != nil {
		return core.LineItem{}, err
	}

	var update LineItemUpdate
	if patch.Category != nil {
		categoryID, err := r.queries.CategoryIDByName(ctx, *patch.Category)
		if errors.Is(err, sql.ErrNoRows) {
			return core.LineItem{}, fmt.Errorf("unknown category %q: %w", *patch.Category, core.ErrNotFound)
		}
		if err != nil {
			return core.LineItem{}, fmt.Errorf("resolve category: %w", err)
		}
		update.CategoryID = &categoryID
	}
	if patch.Assignee != nil {
		assigneeID := sql.NullInt64{}
		if *patch.Assignee != "" {
			id, err := r.queries.ContractorIDByName(ctx, *patch.Assignee)
			if errors.Is(err, sql.ErrNoRows) {
				return core.LineItem{}, fmt.Errorf("unknown contractor %q: %w", *patch.Assignee, core.ErrNotFound)
			}
			if err != nil {
				return core.LineItem{}, fmt.Errorf("resolve contractor: %w", err)
			}
			assigneeID = sql.NullInt64{Int64: id, Valid: true}
		}
		update.AssigneeID = &assigneeID
	}
	if patch.Status != nil {
		s := string(*patch.Status)
		update.Status = &s
	}

	if err := r.queries.UpdateLineItem(ctx, id, update); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.LineItem{}, core.ErrNotFound
		}
		return core.LineItem{}, fmt.Errorf("update line item %d: %w", id, err)
	}

	row, err := r.queries.GetLineItem(ctx, id)
	if err != nil {
		return core.LineItem{}, fmt.Errorf("read back line item %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Line item updated",
		"item_id", id,
		"status", row.Status,
		"needs_review", row.NeedsReview)

	return lineItemFromRow(row), nil
}

// ListCategories implements ports.ReferenceReader
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]string, error) {
	names, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return names, nil
}

// ListContractors implements ports.ReferenceReader
func (r *SQLiteRepository) ListContractors(ctx context.Context) ([]string, error) {
	names, err := r.queries.ListContractors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contractors: %w", err)
	}
	return names, nil
}

// ListClassificationRules implements ports.ReferenceReader
func (r *SQLiteRepository) ListClassificationRules(ctx context.Context) ([]core.ClassificationRule, error) {
	rows, err := r.queries.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classification rules: %w", err)
	}

	rules := make([]core.ClassificationRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, core.ClassificationRule{
			Kind:     core.RuleKind(row.Kind),
			Pattern:  row.Pattern,
			Category: row.CategoryName,
			Priority: int(row.Priority),
		})
	}
	return rules, nil
}

// ListRegionalDefaults implements ports.ReferenceReader
func (r *SQLiteRepository) ListRegionalDefaults(ctx context.Context) ([]core.RegionalDefault, error) {
	rows, err := r.queries.ListRegionalDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regional defaults: %w", err)
	}

	defaults := make([]core.RegionalDefault, 0, len(rows))
	for _, row := range rows {
		defaults = append(defaults, core.RegionalDefault{
			Category:   row.CategoryName,
			Region:     row.Region,
			Contractor: row.ContractorName,
		})
	}
	return defaults, nil
}

// ReadSpendOverview implements ports.DashboardReader
func (r *SQLiteRepository) ReadSpendOverview(ctx context.Context) (core.SpendOverview, error) {
	total, completed, countAll, countCompleted, err := r.queries.SpendOverview(ctx)
	if err != nil {
		return core.SpendOverview{}, fmt.Errorf("read spend overview: %w", err)
	}
	return core.SpendOverview{
		TotalPence:     total,
		CompletedPence: completed,
		CountAll:       countAll,
		CountCompleted: countCompleted,
	}, nil
}

// AddEvidence implements ports.EvidenceRecorder
func (r *SQLiteRepository) AddEvidence(ctx context.Context, e core.Evidence) (core.Evidence, error) {
	if _, err := r.queries.GetLineItem(ctx, e.ItemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Evidence{}, core.ErrNotFound
		}
		return core.Evidence{}, fmt.Errorf("check line item %d: %w", e.ItemID, err)
	}

	id, err := r.queries.InsertEvidence(ctx, e.ItemID, e.Kind, e.FilePath, e.Filename, e.SizeBytes)
	if err != nil {
		return core.Evidence{}, fmt.Errorf("insert evidence: %w", err)
	}

	slog.InfoContext(ctx, "Evidence recorded",
		"evidence_id", id,
		"item_id", e.ItemID,
		"kind", e.Kind,
		"filename", e.Filename)

	e.ID = id
	return e, nil
}

// GetEvidence implements ports.EvidenceRecorder
func (r *SQLiteRepository) GetEvidence(ctx context.Context, id int64) (core.Evidence, error) {
	row, err := r.queries.GetEvidence(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Evidence{}, core.ErrNotFound
		}
		return core.Evidence{}, fmt.Errorf("get evidence %d: %w", id, err)
	}
	return core.Evidence{
		ID:        row.ID,
		ItemID:    row.ItemID,
		Kind:      row.Kind,
		FilePath:  row.FilePath,
		Filename:  row.Filename,
		SizeBytes: row.FilesizeBytes,
		CreatedAt: row.CreatedAt,
	}, nil
}

// PendingFinanceItems returns completed items awaiting the finance export.
func (r *SQLiteRepository) PendingFinanceItems(ctx context.Context, limit int) ([]FinanceItemRow, error) {
	rows, err := r.queries.ListPendingFinanceItems(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending finance items: %w", err)
	}
	return rows, nil
}

func (r *SQLiteRepository) FinanceItem(ctx context.Context, itemID int64) (FinanceItemRow, error) {
	row, err := r.queries.GetFinanceItem(ctx, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return FinanceItemRow{}, core.ErrNotFound
	}
	if err != nil {
		return FinanceItemRow{}, fmt.Errorf("get finance item %d: %w", itemID, err)
	}
	return row, nil
}

func (r *SQLiteRepository) MarkFinanceSynced(ctx context.Context, itemID int64) error {
	if err := r.queries.MarkFinanceSynced(ctx, itemID); err != nil {
		return fmt.Errorf("mark finance synced %d: %w", itemID, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkFinanceSyncError(ctx context.Context, itemID int64) error {
	if err := r.queries.MarkFinanceSyncError(ctx, itemID); err != nil {
		return fmt.Errorf("mark finance sync error %d: %w", itemID, err)
	}
	return nil
}

func (r *SQLiteRepository) nameIndex(ctx context.Context, tx *sql.Tx, query string) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		index[name] = id
	}
	return index, rows.Err()
}

func jobFromRow(row JobRow) core.Job {
	return core.Job{
		ID:        row.ID,
		CreatedAt: row.CreatedAt,
		Property: core.Property{
			InspectedBy:  row.InspectedBy,
			AddressLine1: row.AddressLine1,
			AddressLine2: row.AddressLine2,
			Town:         row.Town,
			Postcode:     row.Postcode,
			Region:       row.Region,
			KeyLocation:  row.KeyLocation,
			KeySafeCode:  row.KeySafeCode,
			OrderNo:      row.OrderNo,
			PropertyType: row.PropertyType,
			TenureType:   row.TenureType,
			Condition:    row.Condition,
			UPRN:         row.UPRN,
			Fund:         row.Fund,
			ClientName:   row.ClientName,
		},
	}
}

func lineItemFromRow(row LineItemRow) core.LineItem {
	return core.LineItem{
		ID:           row.ID,
		JobID:        row.JobID,
		Code:         row.Code,
		Description:  row.Description,
		BaseRate:     core.Money{Pence: row.BaseRatePence},
		ContractRate: core.Money{Pence: row.ContractRatePence},
		Unit:         row.Unit,
		Qty:          row.Qty,
		Total:        core.Money{Pence: row.TotalPence},
		Location:     row.Location,
		Comments:     row.Comments,
		Category:     row.CategoryName.String,
		Assignee:     row.AssigneeName.String,
		Status:       core.Status(row.Status),
		NeedsReview:  row.NeedsReview,
		RowIndex:     int(row.RowIndex),
	}
}
