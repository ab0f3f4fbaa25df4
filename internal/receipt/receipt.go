// Package receipt renders the per-donor receipt artifacts: the attached PDF
// document and the HTML email body. Layout is deliberately simple; the data
// on the receipt (donee registration details, donor identity, per-item
// totals, receipt number) is what matters for tax purposes.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/babyccino/donationreceipt-backend/internal/db"
	"github.com/babyccino/donationreceipt-backend/internal/donation"
)

// TemplateDonorName is the placeholder users put in their campaign body text;
// it is replaced with the donor's name per recipient.
const TemplateDonorName = "FULL_NAME"

// Params is everything needed to render one donor's receipt.
type Params struct {
	Donee         db.DoneeInfo
	Donation      donation.Donation
	ReceiptNumber int64
	DonationRange string
	CurrentDate   time.Time
	Currency      string
}

// FormatBody substitutes the donor's name into the user-authored body text.
func FormatBody(body, donorName string) string {
	return strings.ReplaceAll(body, TemplateDonorName, donorName)
}

// DonationRange renders the campaign's date range as a label for the receipt.
// Cleanly aligned ranges collapse: a full single year becomes "2023", a full
// multi-year span "2023 - 2025", month-aligned ranges name the months, and
// anything else falls back to explicit dates.
func DonationRange(start, end time.Time) string {
	explicit := fmt.Sprintf("%s - %s", start.Format("2006-01-02"), end.Format("2006-01-02"))

	monthStart := start.Day() == 1
	monthEnd := end.Day() == daysInMonth(end)
	if !monthStart || !monthEnd {
		return explicit
	}

	yearStart := start.Month() == time.January
	yearEnd := end.Month() == time.December
	sameYear := start.Year() == end.Year()

	if !yearStart || !yearEnd {
		if !sameYear {
			return explicit
		}
		if start.Month() == end.Month() {
			return fmt.Sprintf("%d %s", start.Year(), start.Month())
		}
		return fmt.Sprintf("%d %s - %s", start.Year(), start.Month(), end.Month())
	}

	if sameYear {
		return fmt.Sprintf("%d", start.Year())
	}
	return fmt.Sprintf("%d - %d", start.Year(), end.Year())
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
