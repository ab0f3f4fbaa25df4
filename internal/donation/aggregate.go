package donation

import (
	"github.com/babyccino/donationreceipt-backend/internal/qbo"
	"github.com/shopspring/decimal"
)

// Aggregate walks every donor row of a sales report and produces one
// donation (without billing details) per donor with a positive total across
// the selected items.
//
// Group-tagged rows (grand totals, "not specified" buckets) are not donor
// rows and are excluded before parsing. Output preserves the report's row
// order; donors whose filtered total is zero are dropped entirely.
func Aggregate(report *qbo.SalesReport, selectedItemIDs map[string]bool) ([]Donation, error) {
	items, err := ItemsFromReport(report)
	if err != nil {
		return nil, err
	}

	donations := make([]Donation, 0, len(report.Rows.Row))
	for i := range report.Rows.Row {
		row := &report.Rows.Row[i]
		if row.Group != "" {
			continue
		}

		data, err := parseRow(row, i)
		if err != nil {
			return nil, err
		}

		d := assemble(data, items, selectedItemIDs)
		if d.Total.IsZero() {
			continue
		}
		donations = append(donations, d)
	}
	return donations, nil
}

// assemble maps a row's per-column totals back onto items by position and
// keeps only positive totals for selected items.
func assemble(data rowData, items []qbo.Item, selected map[string]bool) Donation {
	kept := make([]Item, 0, len(data.perColumn))
	total := decimal.Zero

	for i, amount := range data.perColumn {
		if i >= len(items) {
			break
		}
		item := items[i]
		if !amount.IsPositive() || !selected[item.ID] {
			continue
		}
		kept = append(kept, Item{Name: item.Name, ID: item.ID, Total: amount})
		total = total.Add(amount)
	}

	return Donation{
		Name:    data.name,
		DonorID: data.donorID,
		Total:   total,
		Items:   kept,
	}
}
