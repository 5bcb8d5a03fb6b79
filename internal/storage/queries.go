package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Queries is the hand-written SQL layer. Row structs mirror the tables;
// conversion to domain types happens in the repository.
type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

type JobRow struct {
	ID           int64
	CreatedAt    time.Time
	InspectedBy  string
	AddressLine1 string
	AddressLine2 string
	Town         string
	Postcode     string
	Region       string
	KeyLocation  string
	KeySafeCode  string
	OrderNo      string
	PropertyType string
	TenureType   string
	Condition    string
	UPRN         string
	Fund         string
	ClientName   string
}

type LineItemRow struct {
	ID                int64
	JobID             int64
	Code              string
	Description       string
	BaseRatePence     int64
	ContractRatePence int64
	Unit              string
	Qty               int64
	TotalPence        int64
	Location          string
	Comments          string
	CategoryName      sql.NullString
	AssigneeName      sql.NullString
	Status            string
	NeedsReview       bool
	RowIndex          int64
}

type RuleRow struct {
	Kind         string
	Pattern      string
	CategoryName string
	Priority     int64
}

type RegionalDefaultRow struct {
	CategoryName   string
	Region         string
	ContractorName string
}

type FinanceItemRow struct {
	ItemID      int64
	JobID       int64
	OrderNo     string
	Address     string
	Region      string
	Code        string
	Description string
	TotalPence  int64
}

const jobColumns = `id, created_at, inspected_by, address_line1, address_line2, town,
	postcode, region, key_location, key_safe_code, order_no, property_type,
	tenure_type, condition, uprn, fund, client_name`

func scanJob(s interface{ Scan(...any) error }) (JobRow, error) {
	var j JobRow
	err := s.Scan(&j.ID, &j.CreatedAt, &j.InspectedBy, &j.AddressLine1, &j.AddressLine2,
		&j.Town, &j.Postcode, &j.Region, &j.KeyLocation, &j.KeySafeCode, &j.OrderNo,
		&j.PropertyType, &j.TenureType, &j.Condition, &j.UPRN, &j.Fund, &j.ClientName)
	return j, err
}

func (q *Queries) CreateJob(ctx context.Context, j JobRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO jobs (inspected_by, address_line1, address_line2, town, postcode,
			region, key_location, key_safe_code, order_no, property_type, tenure_type,
			condition, uprn, fund, client_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.InspectedBy, j.AddressLine1, j.AddressLine2, j.Town, j.Postcode,
		j.Region, j.KeyLocation, j.KeySafeCode, j.OrderNo, j.PropertyType,
		j.TenureType, j.Condition, j.UPRN, j.Fund, j.ClientName)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) GetJob(ctx context.Context, id int64) (JobRow, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns jobs newest-first.
func (q *Queries) ListJobs(ctx context.Context) ([]JobRow, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobRow
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const lineItemSelect = `
	SELECT li.id, li.job_id, li.code, li.description, li.base_rate_pence,
		li.contract_rate_pence, li.unit, li.qty, li.total_pence, li.location,
		li.comments, c.name, k.company_name, li.status, li.needs_review, li.row_index
	FROM line_items li
	LEFT JOIN categories c ON c.id = li.category_id
	LEFT JOIN contractors k ON k.id = li.assignee_contractor_id`

func scanLineItem(s interface{ Scan(...any) error }) (LineItemRow, error) {
	var li LineItemRow
	err := s.Scan(&li.ID, &li.JobID, &li.Code, &li.Description, &li.BaseRatePence,
		&li.ContractRatePence, &li.Unit, &li.Qty, &li.TotalPence, &li.Location,
		&li.Comments, &li.CategoryName, &li.AssigneeName, &li.Status,
		&li.NeedsReview, &li.RowIndex)
	return li, err
}

func (q *Queries) ListLineItems(ctx context.Context, jobID int64) ([]LineItemRow, error) {
	rows, err := q.db.QueryContext(ctx, lineItemSelect+` WHERE li.job_id = ? ORDER BY li.row_index ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItemRow
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (q *Queries) GetLineItem(ctx context.Context, id int64) (LineItemRow, error) {
	row := q.db.QueryRowContext(ctx, lineItemSelect+` WHERE li.id = ?`, id)
	return scanLineItem(row)
}

// LineItemUpdate holds the resolved column values for a partial update. Nil
// pointers leave the column untouched.
type LineItemUpdate struct {
	CategoryID *int64
	AssigneeID *sql.NullInt64
	Status     *string
}

func (q *Queries) UpdateLineItem(ctx context.Context, id int64, u LineItemUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *u.CategoryID)
	}
	if u.AssigneeID != nil {
		sets = append(sets, "assignee_contractor_id = ?")
		args = append(args, *u.AssigneeID)
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
		// Re-entering the pipeline's completed state clears the finance
		// marker so the item is exported again.
		sets = append(sets, "finance_synced = CASE WHEN ? = 'Completed' THEN 0 ELSE finance_synced END")
		args = append(args, *u.Status)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := q.db.ExecContext(ctx, `UPDATE line_items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return err
}

func (q *Queries) ListCategories(ctx context.Context) ([]string, error) {
	return q.listNames(ctx, `SELECT name FROM categories ORDER BY id`)
}

func (q *Queries) ListContractors(ctx context.Context) ([]string, error) {
	return q.listNames(ctx, `SELECT company_name FROM contractors ORDER BY company_name`)
}

func (q *Queries) listNames(ctx context.Context, query string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ListRules preserves insertion order so NONSOR priority ties break stably.
func (q *Queries) ListRules(ctx context.Context) ([]RuleRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT r.kind, r.pattern, c.name, r.priority
		FROM category_rules r
		JOIN categories c ON c.id = r.category_id
		ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RuleRow
	for rows.Next() {
		var r RuleRow
		if err := rows.Scan(&r.Kind, &r.Pattern, &r.CategoryName, &r.Priority); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) ListRegionalDefaults(ctx context.Context) ([]RegionalDefaultRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT c.name, d.region, k.company_name
		FROM regional_defaults d
		JOIN categories c ON c.id = d.category_id
		JOIN contractors k ON k.id = d.contractor_id
		ORDER BY d.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RegionalDefaultRow
	for rows.Next() {
		var d RegionalDefaultRow
		if err := rows.Scan(&d.CategoryName, &d.Region, &d.ContractorName); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q *Queries) SpendOverview(ctx context.Context) (total, completed int64, countAll, countCompleted int, err error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_pence), 0),
			COALESCE(SUM(CASE WHEN status = 'Completed' THEN total_pence ELSE 0 END), 0),
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'Completed' THEN 1 ELSE 0 END), 0)
		FROM line_items`)
	err = row.Scan(&total, &completed, &countAll, &countCompleted)
	return
}

func (q *Queries) InsertEvidence(ctx context.Context, itemID int64, kind, filePath, filename string, sizeBytes int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO evidence (item_id, kind, file_path, filename, filesize_bytes)
		VALUES (?, ?, ?, ?, ?)`,
		itemID, kind, filePath, filename, sizeBytes)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type EvidenceRow struct {
	ID            int64
	ItemID        int64
	Kind          string
	FilePath      string
	Filename      string
	FilesizeBytes int64
	CreatedAt     time.Time
}

func (q *Queries) GetEvidence(ctx context.Context, id int64) (EvidenceRow, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, item_id, kind, file_path, filename, filesize_bytes, created_at
		FROM evidence WHERE id = ?`, id)

	var ev EvidenceRow
	err := row.Scan(&ev.ID, &ev.ItemID, &ev.Kind, &ev.FilePath, &ev.Filename,
		&ev.FilesizeBytes, &ev.CreatedAt)
	if err != nil {
		return EvidenceRow{}, err
	}
	return ev, nil
}

// ListPendingFinanceItems returns completed line items not yet exported to
// the finance sheet, joined with the owning job for the export row.
func (q *Queries) ListPendingFinanceItems(ctx context.Context, limit int) ([]FinanceItemRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT li.id, li.job_id, j.order_no, j.address_line1, j.region,
			li.code, li.description, li.total_pence
		FROM line_items li
		JOIN jobs j ON j.id = li.job_id
		WHERE li.status = 'Completed' AND li.finance_synced = 0
		ORDER BY li.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FinanceItemRow
	for rows.Next() {
		var f FinanceItemRow
		if err := rows.Scan(&f.ItemID, &f.JobID, &f.OrderNo, &f.Address, &f.Region,
			&f.Code, &f.Description, &f.TotalPence); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (q *Queries) GetFinanceItem(ctx context.Context, itemID int64) (FinanceItemRow, error) {
	var f FinanceItemRow
	err := q.db.QueryRowContext(ctx, `
		SELECT li.id, li.job_id, j.order_no, j.address_line1, j.region,
			li.code, li.description, li.total_pence
		FROM line_items li
		JOIN jobs j ON j.id = li.job_id
		WHERE li.id = ?`, itemID).
		Scan(&f.ItemID, &f.JobID, &f.OrderNo, &f.Address, &f.Region,
			&f.Code, &f.Description, &f.TotalPence)
	return f, err
}

func (q *Queries) MarkFinanceSynced(ctx context.Context, itemID int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE line_items SET finance_synced = 1 WHERE id = ?`, itemID)
	return err
}

func (q *Queries) MarkFinanceSyncError(ctx context.Context, itemID int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE line_items SET finance_synced = -1 WHERE id = ?`, itemID)
	return err
}

// CategoryIDByName resolves a category name; callers decide how to treat a
// missing name.
func (q *Queries) CategoryIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	return id, err
}

func (q *Queries) ContractorIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `SELECT id FROM contractors WHERE company_name = ?`, name).Scan(&id)
	return id, err
}
