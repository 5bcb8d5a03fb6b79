package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusUnassigned Status = "Unassigned"
	StatusAssigned   Status = "Assigned"
	StatusStarted    Status = "Started"
	StatusCompleted  Status = "Completed"
)

const (
	RuleCode   RuleKind = "CODE"
	RuleNonSOR RuleKind = "NONSOR"
)

// DefaultCategory is assigned when no classification rule matches.
const DefaultCategory = "Other"

type (
	// Status is the workflow state of a line item.
	Status string

	// RuleKind selects how a classification rule pattern is matched:
	// CODE rules match the item code exactly, NONSOR rules match the
	// description by case-insensitive substring.
	RuleKind string

	// SheetRow is one line of an uploaded Schedule of Works, as read from
	// the spreadsheet. Monetary values are decimal pounds at this stage;
	// conversion to pence happens in the classification pipeline.
	SheetRow struct {
		Code         string
		Description  string
		BaseRate     float64
		ContractRate float64
		Unit         string
		Qty          float64
		Total        float64
		Location     string
		Comments     string
	}

	// ClassificationRule maps a code or description pattern to a category.
	// Rules are read-only reference data; lower priority wins.
	ClassificationRule struct {
		Kind     RuleKind
		Pattern  string
		Category string
		Priority int
	}

	// RegionalDefault pre-assigns a contractor for a (category, region) pair.
	RegionalDefault struct {
		Category   string
		Region     string
		Contractor string
	}

	// Property holds the free-form attributes captured on the upload form.
	// All fields are optional.
	Property struct {
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

	// Job is one uploaded Schedule of Works and its property details.
	Job struct {
		ID        int64
		CreatedAt time.Time
		Property
	}

	// LineItemDraft is the output of the classification pipeline, ready for
	// bulk insertion. Monetary fields are integer pence.
	LineItemDraft struct {
		Code         string
		Description  string
		BaseRate     Money
		ContractRate Money
		Unit         string
		Qty          int64
		Total        Money
		Location     string
		Comments     string
		Category     string
		Assignee     string
		Status       Status
		NeedsReview  bool
		RowIndex     int
	}

	// LineItem is a persisted schedule line with joined display names.
	LineItem struct {
		ID           int64
		JobID        int64
		Code         string
		Description  string
		BaseRate     Money
		ContractRate Money
		Unit         string
		Qty          int64
		Total        Money
		Location     string
		Comments     string
		Category     string
		Assignee     string
		Status       Status
		NeedsReview  bool
		RowIndex     int
	}

	// LineItemPatch carries a partial field-by-field update. Nil fields are
	// left untouched.
	LineItemPatch struct {
		Category *string
		Assignee *string
		Status   *Status
	}

	// Evidence records an uploaded attachment for a line item. The binary
	// payload lives in the evidence file store; this is the reference row.
	Evidence struct {
		ID        int64
		ItemID    int64
		Kind      string
		FilePath  string
		Filename  string
		SizeBytes int64
		CreatedAt time.Time
	}
)

var (
	ErrInvalidStatus = errors.New("invalid status")
	ErrEmptyPatch    = errors.New("empty patch")
	ErrNotFound      = errors.New("not found")
)

// IsValid reports whether s is one of the four workflow states.
func (s Status) IsValid() bool {
	switch s {
	case StatusUnassigned, StatusAssigned, StatusStarted, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus validates and returns a Status from user input.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.IsValid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// IsEmpty reports whether the patch would change nothing.
func (p LineItemPatch) IsEmpty() bool {
	return p.Category == nil && p.Assignee == nil && p.Status == nil
}

// Validate rejects patches that carry an invalid status.
func (p LineItemPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Status != nil && !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// IsBlank reports whether the row has neither a code nor a description after
// trimming. Blank rows are skipped entirely at upload.
func (r SheetRow) IsBlank() bool {
	return strings.TrimSpace(r.Code) == "" && strings.TrimSpace(r.Description) == ""
}
