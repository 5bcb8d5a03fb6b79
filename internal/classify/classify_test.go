package classify

import (
	"testing"

	"worksched/internal/core"
)

var testRef = Reference{
	Rules: []core.ClassificationRule{
		{Kind: core.RuleNonSOR, Pattern: "CARPET:RENEW TO DOMESTIC AREAS", Category: "Flooring", Priority: 1},
		{Kind: core.RuleCode, Pattern: "7300GA", Category: "Gas"},
	},
	Defaults: []core.RegionalDefault{
		{Category: "Flooring", Region: "Gloucester", Contractor: "Acme Flooring Ltd"},
	},
}

func TestCarpetFixedRate(t *testing.T) {
	cases := []struct {
		name        string
		contract    float64
		qty         float64
		wantReview  bool
		wantTotal   int64
	}{
		{"exact rate", 32.10, 2, false, 6420},
		{"within tolerance", 32.105, 2, false, 6420},
		{"wrong rate forced anyway", 40.00, 3, true, 9630},
		{"zero rate", 0, 1, true, 3210},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := core.SheetRow{
				Code:         "NONSOR",
				Description:  "CARPET:RENEW TO DOMESTIC AREAS",
				BaseRate:     27.91,
				ContractRate: tc.contract,
				Qty:          tc.qty,
				Total:        999.99, // TOTAL column is overridden by the fixed rate
			}
			d := ClassifyAndPrice(row, testRef, "", 0)
			if d.ContractRate.Pence != 3210 {
				t.Fatalf("contract rate = %d, want 3210", d.ContractRate.Pence)
			}
			if d.Total.Pence != tc.wantTotal {
				t.Fatalf("total = %d, want %d", d.Total.Pence, tc.wantTotal)
			}
			if d.NeedsReview != tc.wantReview {
				t.Fatalf("needs review = %v, want %v", d.NeedsReview, tc.wantReview)
			}
			if d.Category != "Flooring" {
				t.Fatalf("category = %q, want Flooring", d.Category)
			}
		})
	}
}

func TestCarpetDescriptionMatchIsExact(t *testing.T) {
	// A lowercase description still classifies as Flooring through the NONSOR
	// rule, but the fixed-rate override requires the exact string.
	row := core.SheetRow{
		Code:         "NONSOR",
		Description:  "carpet:renew to domestic areas",
		BaseRate:     27.91,
		ContractRate: 32.10,
		Qty:          1,
	}
	d := ClassifyAndPrice(row, testRef, "", 0)
	if d.Category != "Flooring" {
		t.Fatalf("category = %q, want Flooring", d.Category)
	}
	// Uplift check applies instead: 27.91 * 1.15 = 32.0965, |32.10-32.0965| < 0.01.
	if d.NeedsReview {
		t.Fatal("uplift within tolerance should not need review")
	}
}

func TestUpliftCheck(t *testing.T) {
	cases := []struct {
		name       string
		base       float64
		contract   float64
		wantReview bool
	}{
		{"exact 15 percent", 100.00, 115.00, false},
		{"just inside tolerance", 100.00, 115.009, false},
		{"outside tolerance", 100.00, 115.02, true},
		{"void safety check scenario", 58.01, 65.55, true}, // expected 66.71
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := core.SheetRow{
				Code:         "XX1",
				Description:  "SOMETHING UNMATCHED",
				BaseRate:     tc.base,
				ContractRate: tc.contract,
				Qty:          1,
			}
			d := ClassifyAndPrice(row, testRef, "", 0)
			// Unmatched rows always need review for classification; isolate
			// the rate portion by checking a matched row too.
			matched := row
			matched.Code = "7300GA"
			md := ClassifyAndPrice(matched, testRef, "", 0)
			if md.NeedsReview != tc.wantReview {
				t.Fatalf("rate review = %v, want %v", md.NeedsReview, tc.wantReview)
			}
			if !d.NeedsReview {
				t.Fatal("unmatched row must need review")
			}
		})
	}
}

func TestVoidSafetyCheckScenario(t *testing.T) {
	row := core.SheetRow{
		Code:         "7300EA",
		Description:  "VOID:SAFETY CHECK AND TEST GAS INSTALLATION",
		BaseRate:     58.01,
		ContractRate: 65.55,
		Qty:          1,
	}
	d := ClassifyAndPrice(row, testRef, "Gloucester", 0)
	if d.Category != "Other" {
		t.Fatalf("category = %q, want Other", d.Category)
	}
	if !d.NeedsReview {
		t.Fatal("expected needs review")
	}
	if d.ContractRate.Pence != 6555 || d.Total.Pence != 6555 {
		t.Fatalf("contract/total = %d/%d, want 6555/6555", d.ContractRate.Pence, d.Total.Pence)
	}
	if d.Assignee != "" || d.Status != core.StatusUnassigned {
		t.Fatalf("unexpected default assignment: %q/%s", d.Assignee, d.Status)
	}
}

func TestCodeRuleBeatsNonSOR(t *testing.T) {
	ref := Reference{
		Rules: []core.ClassificationRule{
			{Kind: core.RuleNonSOR, Pattern: "BOILER", Category: "Plumbing", Priority: 1},
			{Kind: core.RuleCode, Pattern: "GAS01", Category: "Gas"},
		},
	}
	cat, review := Categorize("GAS01", "REPLACE BOILER FLUE", ref.Rules)
	if cat != "Gas" || review {
		t.Fatalf("got %q/%v, want Gas/false", cat, review)
	}
}

func TestCodeRuleIsCaseSensitive(t *testing.T) {
	cat, _ := Categorize("gas01", "REPLACE BOILER FLUE", []core.ClassificationRule{
		{Kind: core.RuleCode, Pattern: "GAS01", Category: "Gas"},
	})
	if cat == "Gas" {
		t.Fatal("CODE rules must match case-sensitively")
	}
}

func TestNonSORPriorityOrder(t *testing.T) {
	rules := []core.ClassificationRule{
		{Kind: core.RuleNonSOR, Pattern: "carpet", Category: "Handyman", Priority: 50},
		{Kind: core.RuleNonSOR, Pattern: "CARPET:RENEW", Category: "Flooring", Priority: 1},
	}
	cat, _ := Categorize("", "CARPET:RENEW TO DOMESTIC AREAS", rules)
	if cat != "Flooring" {
		t.Fatalf("category = %q, want Flooring (priority 1 first)", cat)
	}

	// Ties keep original order; unset priority defaults to 100.
	rules = []core.ClassificationRule{
		{Kind: core.RuleNonSOR, Pattern: "CARPET", Category: "Flooring"},
		{Kind: core.RuleNonSOR, Pattern: "CARPET", Category: "Decorating"},
	}
	cat, _ = Categorize("", "CARPET:RENEW", rules)
	if cat != "Flooring" {
		t.Fatalf("category = %q, want Flooring (stable tie-break)", cat)
	}
}

func TestRegionalDefaultAssignment(t *testing.T) {
	row := core.SheetRow{
		Code:         "NONSOR",
		Description:  "CARPET:RENEW TO DOMESTIC AREAS",
		BaseRate:     27.91,
		ContractRate: 32.10,
		Qty:          2,
	}
	d := ClassifyAndPrice(row, testRef, "Gloucester", 3)
	if d.Assignee != "Acme Flooring Ltd" {
		t.Fatalf("assignee = %q, want Acme Flooring Ltd", d.Assignee)
	}
	if d.Status != core.StatusAssigned {
		t.Fatalf("status = %s, want Assigned", d.Status)
	}
	if d.Total.Pence != 6420 || d.NeedsReview {
		t.Fatalf("total/review = %d/%v, want 6420/false", d.Total.Pence, d.NeedsReview)
	}
	if d.RowIndex != 3 {
		t.Fatalf("row index = %d, want 3", d.RowIndex)
	}

	// Same category, different region: no default.
	d = ClassifyAndPrice(row, testRef, "Hackney", 0)
	if d.Assignee != "" || d.Status != core.StatusUnassigned {
		t.Fatalf("unexpected assignment for Hackney: %q/%s", d.Assignee, d.Status)
	}
}

func TestProcessRowsSkipsBlanksKeepsIndexes(t *testing.T) {
	rows := []core.SheetRow{
		{Code: "A1", Description: "FIRST", BaseRate: 10, ContractRate: 11.5, Qty: 1},
		{}, // blank, consumes index 1
		{Code: "  ", Description: " "},
		{Code: "A2", Description: "LAST", BaseRate: 20, ContractRate: 23, Qty: 1},
	}
	drafts := ProcessRows(rows, testRef, "")
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	if drafts[0].RowIndex != 0 || drafts[1].RowIndex != 3 {
		t.Fatalf("row indexes = %d,%d, want 0,3", drafts[0].RowIndex, drafts[1].RowIndex)
	}
}

func TestTotalColumnPreferredWhenPresent(t *testing.T) {
	row := core.SheetRow{
		Code:         "A1",
		Description:  "SUPPLIED TOTAL",
		BaseRate:     10,
		ContractRate: 11.50,
		Qty:          3,
		Total:        99.99, // kept even though it disagrees with rate * qty
	}
	d := ClassifyAndPrice(row, testRef, "", 0)
	if d.Total.Pence != 9999 {
		t.Fatalf("total = %d, want 9999", d.Total.Pence)
	}

	row.Total = 0
	d = ClassifyAndPrice(row, testRef, "", 0)
	if d.Total.Pence != 3450 {
		t.Fatalf("recomputed total = %d, want 3450", d.Total.Pence)
	}
}

func TestMalformedNumbersDegradeToZero(t *testing.T) {
	// The codec coerces bad numerics to zero; the pipeline must not reject
	// such rows, only flag them via the rate check.
	row := core.SheetRow{Code: "BAD1", Description: "BAD NUMBERS", BaseRate: 12}
	d := ClassifyAndPrice(row, testRef, "", 0)
	if !d.NeedsReview {
		t.Fatal("zeroed contract rate should fail the uplift check")
	}
	if d.Total.Pence != 0 || d.Qty != 0 {
		t.Fatalf("total/qty = %d/%d, want 0/0", d.Total.Pence, d.Qty)
	}
}
