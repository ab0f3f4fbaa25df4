package receipt

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// PDF renders the attached receipt document.
func PDF(p Params) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// ── Donee letterhead ──────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 8, p.Donee.CompanyName)
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, p.Donee.CompanyAddress)
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Charitable Registration No. %s", p.Donee.RegistrationNumber))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 7, "Official Donation Receipt for Income Tax Purposes")
	pdf.Ln(9)

	// ── Receipt metadata ──────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, fmt.Sprintf("Receipt No. %d", p.ReceiptNumber))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Receipt issued: %s", p.CurrentDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Donations received: %s", p.DonationRange))
	pdf.Ln(9)

	// ── Donor ─────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, "Received from")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, p.Donation.Name)
	pdf.Ln(5)
	pdf.Cell(0, 5, p.Donation.Address)
	pdf.Ln(10)

	// ── Item table ────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(120, 6, "Gift", "B", 0, "L", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("Amount (%s)", p.Currency), "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range p.Donation.Items {
		pdf.CellFormat(120, 6, item.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, item.Total.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(120, 7, "Total eligible amount", "T", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, p.Donation.Total.StringFixed(2), "T", 1, "R", false, 0, "")
	pdf.Ln(14)

	// ── Signature ─────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, p.Donee.SignatoryName)
	pdf.Ln(5)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 5, "Authorized signatory")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
