// Package donation holds the pure transformation core: interpreting the
// irregular shapes of a QBO customer sales report, aggregating per-donor
// totals for a selected item set, joining billing details from a customer
// query, and computing the integrity checksum handed to the browser.
//
// Nothing in this package performs I/O. Given identical inputs every function
// returns identical output, which is what makes the checksum design sound.
package donation

import (
	"fmt"
	"strings"

	"github.com/babyccino/donationreceipt-backend/internal/qbo"
	"github.com/shopspring/decimal"
)

// NoBillingAddress is the sentinel used when a donor has no billing address
// on file. It is rendered verbatim on the receipt.
const NoBillingAddress = "No billing address on file"

// Item is one donated item line within a donation.
type Item struct {
	Name  string          `json:"name"`
	ID    string          `json:"id"`
	Total decimal.Decimal `json:"total"`
}

// Donation is the final per-donor record: selected-item totals plus billing
// details. Email is nil when the donor has no email address on file; that is
// not an error, the donor simply cannot be a campaign recipient.
type Donation struct {
	Name    string          `json:"name"`
	DonorID string          `json:"donorId"`
	Total   decimal.Decimal `json:"total"`
	Items   []Item          `json:"items"`
	Address string          `json:"address"`
	Email   *string         `json:"email"`
}

// ─── ADDRESS FORMATTING ───────────────────────────────────────────────────────

// FormatAddress renders a QBO billing address as a single display line:
// line1, then line2/line3 space-joined when present, then a comma before the
// space-joined city/postal/region segment when any of the three is present.
// Absent fields never produce doubled separators.
func FormatAddress(a *qbo.Address) string {
	var b strings.Builder
	b.WriteString(a.Line1)
	padWrite(&b, a.Line2)
	padWrite(&b, a.Line3)
	if a.City != "" || a.PostalCode != "" || a.CountrySubDivisionCode != "" {
		b.WriteString(",")
		padWrite(&b, a.City)
		padWrite(&b, a.PostalCode)
		padWrite(&b, a.CountrySubDivisionCode)
	}
	return b.String()
}

func padWrite(b *strings.Builder, s string) {
	if s == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(s)
}

// ─── ENRICHMENT ──────────────────────────────────────────────────────────────

// Enrich joins billing address and email onto aggregated donations. A donor
// id with no matching customer is a hard failure: the report and the customer
// query disagree about who exists, and proceeding with a partial answer would
// silently drop receipts.
func Enrich(donations []Donation, customers []qbo.Customer) ([]Donation, error) {
	if len(customers) == 0 && len(donations) > 0 {
		return nil, fmt.Errorf("donation: no customers found in query result")
	}

	byID := make(map[string]*qbo.Customer, len(customers))
	for i := range customers {
		byID[customers[i].ID] = &customers[i]
	}

	out := make([]Donation, len(donations))
	for i, d := range donations {
		customer, ok := byID[d.DonorID]
		if !ok {
			return nil, fmt.Errorf("donation: customer not found for donor id %s", d.DonorID)
		}

		d.Address = NoBillingAddress
		if customer.BillAddr != nil {
			d.Address = FormatAddress(customer.BillAddr)
		}
		d.Email = nil
		if customer.PrimaryEmailAddr != nil && customer.PrimaryEmailAddr.Address != "" {
			email := customer.PrimaryEmailAddr.Address
			d.Email = &email
		}
		out[i] = d
	}
	return out, nil
}
