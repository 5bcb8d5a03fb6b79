// Package classify implements the upload pipeline that turns spreadsheet rows
// into priced, categorized line item drafts. It is pure: reference data is
// passed in as snapshots and persistence is left to the caller.
package classify

import (
	"math"
	"sort"
	"strings"

	"worksched/internal/core"
)

const (
	// upliftFactor is the mandated markup of contract rate over base rate.
	upliftFactor = 1.15

	// rateTolerance is the maximum absolute difference, in pounds, tolerated
	// between the supplied contract rate and the expected one.
	rateTolerance = 0.01

	// Carpet renewal is billed at a fixed unit price regardless of the rate
	// supplied in the schedule. The description match is exact and
	// case-sensitive.
	carpetCode        = "NONSOR"
	carpetDescription = "CARPET:RENEW TO DOMESTIC AREAS"
	carpetRate        = 32.10

	// defaultPriority applies to rules whose priority is unset (<= 0).
	defaultPriority = 100
)

// Reference is a read-only snapshot of classification reference data, fetched
// once per upload.
type Reference struct {
	Rules    []core.ClassificationRule
	Defaults []core.RegionalDefault
}

// DefaultFor returns the default contractor for a category in a region.
func (r Reference) DefaultFor(category, region string) (string, bool) {
	for _, d := range r.Defaults {
		if d.Category == category && d.Region == region {
			return d.Contractor, true
		}
	}
	return "", false
}

// Categorize resolves a category for a row. Exact CODE rules win; otherwise
// NONSOR rules are tried in ascending priority order (stable on ties) as
// case-insensitive substrings of the description. Unmatched rows fall back to
// the default category and are flagged for review.
func Categorize(code, description string, rules []core.ClassificationRule) (category string, needsReview bool) {
	for _, r := range rules {
		if r.Kind == core.RuleCode && r.Pattern == code {
			return r.Category, false
		}
	}

	nonsor := make([]core.ClassificationRule, 0, len(rules))
	for _, r := range rules {
		if r.Kind == core.RuleNonSOR {
			nonsor = append(nonsor, r)
		}
	}
	sort.SliceStable(nonsor, func(i, j int) bool {
		return priorityOf(nonsor[i]) < priorityOf(nonsor[j])
	})

	lower := strings.ToLower(description)
	for _, r := range nonsor {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Category, false
		}
	}

	return core.DefaultCategory, true
}

func priorityOf(r core.ClassificationRule) int {
	if r.Priority <= 0 {
		return defaultPriority
	}
	return r.Priority
}

// rateCheck validates the contract rate and applies the carpet fixed-rate
// override. The returned rate is the one to persist; fixed reports whether the
// override fired, in which case the total must be recomputed from it.
func rateCheck(base, contract float64, code, description string) (rate float64, fixed, valid bool) {
	if code == carpetCode && description == carpetDescription {
		return carpetRate, true, math.Abs(contract-carpetRate) < rateTolerance
	}
	expected := base * upliftFactor
	return contract, false, math.Abs(contract-expected) < rateTolerance
}

// ClassifyAndPrice transforms one non-blank sheet row into a line item draft.
// rowIndex is the row's position in the original sequence, counting skipped
// rows, so persisted items keep the spreadsheet order.
func ClassifyAndPrice(row core.SheetRow, ref Reference, region string, rowIndex int) core.LineItemDraft {
	code := strings.TrimSpace(row.Code)
	description := strings.TrimSpace(row.Description)

	category, needsReview := Categorize(code, description, ref.Rules)
	rate, fixed, valid := rateCheck(row.BaseRate, row.ContractRate, code, description)

	total := row.Total
	if fixed {
		total = rate * row.Qty
	} else if total == 0 {
		total = rate * row.Qty
	}

	assignee := ""
	status := core.StatusUnassigned
	if name, ok := ref.DefaultFor(category, region); ok {
		assignee = name
		status = core.StatusAssigned
	}

	return core.LineItemDraft{
		Code:         code,
		Description:  description,
		BaseRate:     core.Money{Pence: core.ToPence(row.BaseRate)},
		ContractRate: core.Money{Pence: core.ToPence(rate)},
		Unit:         strings.TrimSpace(row.Unit),
		Qty:          int64(math.Round(row.Qty)),
		Total:        core.Money{Pence: core.ToPence(total)},
		Location:     strings.TrimSpace(row.Location),
		Comments:     strings.TrimSpace(row.Comments),
		Category:     category,
		Assignee:     assignee,
		Status:       status,
		NeedsReview:  needsReview || !valid,
		RowIndex:     rowIndex,
	}
}

// ProcessRows runs the pipeline over an ordered upload. Blank rows (no code
// and no description) are skipped but still consume their row index, so the
// emitted drafts carry the index of their original spreadsheet position.
func ProcessRows(rows []core.SheetRow, ref Reference, region string) []core.LineItemDraft {
	drafts := make([]core.LineItemDraft, 0, len(rows))
	for i, row := range rows {
		if row.IsBlank() {
			continue
		}
		drafts = append(drafts, ClassifyAndPrice(row, ref, region, i))
	}
	return drafts
}
