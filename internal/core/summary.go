package core

// SpendOverview aggregates contract value and completion across line items.
type SpendOverview struct {
	TotalPence     int64
	CompletedPence int64
	CountAll       int
	CountCompleted int
}

// ValuePercent is the completed share of contract value, 0-100.
func (o SpendOverview) ValuePercent() int {
	return percent(o.CompletedPence, o.TotalPence)
}

// CountPercent is the completed share of line items, 0-100.
func (o SpendOverview) CountPercent() int {
	return percent(int64(o.CountCompleted), int64(o.CountAll))
}

// OverviewOf aggregates a slice of line items, typically one job's worth.
func OverviewOf(items []LineItem) SpendOverview {
	var o SpendOverview
	for _, item := range items {
		o.TotalPence += item.Total.Pence
		o.CountAll++
		if item.Status == StatusCompleted {
			o.CompletedPence += item.Total.Pence
			o.CountCompleted++
		}
	}
	return o
}

func percent(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int((part*100 + whole/2) / whole)
}
