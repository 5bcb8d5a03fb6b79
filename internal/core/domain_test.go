package core

import "testing"

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"Unassigned", "Assigned", "Started", "Completed", " Completed "} {
		if _, err := ParseStatus(valid); err != nil {
			t.Fatalf("ParseStatus(%q) returned %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "completed", "Done", "ASSIGNED"} {
		if _, err := ParseStatus(invalid); err == nil {
			t.Fatalf("ParseStatus(%q) expected error", invalid)
		}
	}
}

func TestLineItemPatchValidate(t *testing.T) {
	if err := (LineItemPatch{}).Validate(); err != ErrEmptyPatch {
		t.Fatalf("empty patch: got %v, want ErrEmptyPatch", err)
	}

	bad := Status("Done")
	if err := (LineItemPatch{Status: &bad}).Validate(); err != ErrInvalidStatus {
		t.Fatalf("invalid status: got %v, want ErrInvalidStatus", err)
	}

	name := "Acme Flooring Ltd"
	if err := (LineItemPatch{Assignee: &name}).Validate(); err != nil {
		t.Fatalf("assignee-only patch: %v", err)
	}
}

func TestSheetRowIsBlank(t *testing.T) {
	cases := []struct {
		row   SheetRow
		blank bool
	}{
		{SheetRow{}, true},
		{SheetRow{Code: "  ", Description: "\t"}, true},
		{SheetRow{Code: "7300EA"}, false},
		{SheetRow{Description: "CARPET:RENEW TO DOMESTIC AREAS"}, false},
		{SheetRow{Qty: 2, Total: 10}, true}, // numbers alone do not make a row
	}
	for i, tc := range cases {
		if got := tc.row.IsBlank(); got != tc.blank {
			t.Fatalf("case %d: IsBlank = %v, want %v", i, got, tc.blank)
		}
	}
}

func TestSpendOverviewPercent(t *testing.T) {
	o := SpendOverview{TotalPence: 20000, CompletedPence: 5000, CountAll: 4, CountCompleted: 3}
	if got := o.ValuePercent(); got != 25 {
		t.Fatalf("ValuePercent = %d, want 25", got)
	}
	if got := o.CountPercent(); got != 75 {
		t.Fatalf("CountPercent = %d, want 75", got)
	}
	if got := (SpendOverview{}).ValuePercent(); got != 0 {
		t.Fatalf("zero overview percent = %d, want 0", got)
	}
}
