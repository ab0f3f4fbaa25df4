package donation

import (
	"fmt"

	"github.com/babyccino/donationreceipt-backend/internal/qbo"
	"github.com/shopspring/decimal"
)

// ─── ROW VARIANTS ─────────────────────────────────────────────────────────────

// QBO serves donor rows in two physical shapes through the same JSON object:
// a flat row whose ColData carries [name, item totals..., total], and a
// "Section" whose Header carries the donor identity and whose Summary carries
// the same cells a flat row would. The shape is resolved exactly once here;
// everything downstream works on rowData.

type rowKind int

const (
	rowFlat rowKind = iota
	rowSectioned
)

type rowVariant struct {
	kind rowKind
	// identity is the donor cell: ColData[0] for flat rows, Header.ColData[0]
	// for sectioned rows.
	identity qbo.ColData
	// cells are the full value cells including the leading name cell and the
	// trailing total cell: ColData for flat rows, Summary.ColData for
	// sectioned rows.
	cells []qbo.ColData
}

// resolveVariant classifies a non-group row. A row is sectioned iff it is
// tagged type "Section"; group-tagged rows must have been filtered out before
// this point.
func resolveVariant(row *qbo.Row) (rowVariant, error) {
	if row.Type == "Section" {
		if row.Header == nil || len(row.Header.ColData) == 0 || row.Summary == nil {
			return rowVariant{}, fmt.Errorf("section row is missing Header or Summary")
		}
		// Sub-rows under row.Rows are per-transaction breakdowns; the Summary
		// already carries the per-column totals, so they are ignored.
		return rowVariant{
			kind:     rowSectioned,
			identity: row.Header.ColData[0],
			cells:    row.Summary.ColData,
		}, nil
	}

	if len(row.ColData) == 0 {
		return rowVariant{}, fmt.Errorf("flat row has no ColData")
	}
	return rowVariant{
		kind:     rowFlat,
		identity: row.ColData[0],
		cells:    row.ColData,
	}, nil
}

// ─── ROW PARSING ─────────────────────────────────────────────────────────────

// rowData is the normalised intermediate form of one donor row: identity plus
// the per-column totals, positionally aligned with the report's item columns.
type rowData struct {
	donorID   string
	name      string
	perColumn []decimal.Decimal
}

// parseRow normalises one donor row. Missing donor id or name is a hard
// failure for the row: it means the report shape is not what this parser was
// built against and must be investigated, not skipped.
func parseRow(row *qbo.Row, index int) (rowData, error) {
	v, err := resolveVariant(row)
	if err != nil {
		return rowData{}, fmt.Errorf("donation: row %d: %w", index, err)
	}

	if v.identity.ID == "" || v.identity.Value == "" {
		return rowData{}, fmt.Errorf("donation: row %d: donor identity is malformed, missing id or name", index)
	}

	values := skipFirstAndLast(v.cells)
	perColumn := make([]decimal.Decimal, len(values))
	for i, cell := range values {
		perColumn[i] = parseAmount(cell.Value)
	}

	return rowData{
		donorID:   v.identity.ID,
		name:      v.identity.Value,
		perColumn: perColumn,
	}, nil
}

// parseAmount reads a report cell as a monetary amount. Empty and
// non-numeric cells normalise to zero; QBO emits "" for items a donor never
// bought.
func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// skipFirstAndLast drops the leading name cell and the trailing total cell,
// leaving only the per-item value cells.
func skipFirstAndLast(cells []qbo.ColData) []qbo.ColData {
	if len(cells) <= 2 {
		return nil
	}
	return cells[1 : len(cells)-1]
}

// ─── COLUMN → ITEM MAP ───────────────────────────────────────────────────────

// ItemsFromReport derives the positional column→item map from the report's
// declared columns, dropping the leading name column and the trailing Total
// column. Every remaining column must carry MetaData identifying its item id;
// position is the only join key between a row's values and items, so a column
// without metadata would silently misalign every donation after it.
func ItemsFromReport(report *qbo.SalesReport) ([]qbo.Item, error) {
	cols := report.Columns.Column
	if len(cols) < 2 {
		return nil, fmt.Errorf("donation: report has %d columns, need at least name and total", len(cols))
	}

	itemCols := cols[1 : len(cols)-1]
	items := make([]qbo.Item, len(itemCols))
	for i, col := range itemCols {
		if len(col.MetaData) == 0 {
			return nil, fmt.Errorf("donation: report column %d (%q) is missing MetaData", i, col.ColTitle)
		}
		items[i] = qbo.Item{Name: col.ColTitle, ID: col.MetaData[0].Value}
	}
	return items, nil
}
