package receipt

import (
	"fmt"
	"html"
	"strings"
)

// EmailHTML renders the receipt email body: the user-authored message with
// the donor's name substituted, followed by a summary block mirroring the
// attached PDF.
func EmailHTML(p Params, body string) string {
	var rows strings.Builder
	for _, item := range p.Donation.Items {
		fmt.Fprintf(&rows, `
      <tr>
        <td style="padding: 4px 12px 4px 0;">%s</td>
        <td style="padding: 4px 0; text-align: right;">%s %s</td>
      </tr>`,
			html.EscapeString(item.Name), item.Total.StringFixed(2), html.EscapeString(p.Currency))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <p style="white-space: pre-line;">%s</p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 24px 0;">
  <h3 style="margin-bottom: 4px;">Official Donation Receipt</h3>
  <p style="color: #6b7280; font-size: 14px; margin-top: 0;">
    Receipt No. %d · %s
  </p>
  <table style="width: 100%%; border-collapse: collapse; font-size: 14px;">%s
    <tr>
      <td style="padding: 8px 12px 4px 0; font-weight: 600; border-top: 1px solid #e5e7eb;">Total</td>
      <td style="padding: 8px 0 4px; text-align: right; font-weight: 600; border-top: 1px solid #e5e7eb;">%s %s</td>
    </tr>
  </table>
  <p style="color: #6b7280; font-size: 13px;">
    A PDF copy of this receipt is attached for your records.
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 24px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    %s · %s · Registration No. %s
  </p>
</body>
</html>`,
		html.EscapeString(body),
		p.ReceiptNumber,
		html.EscapeString(p.DonationRange),
		rows.String(),
		p.Donation.Total.StringFixed(2), html.EscapeString(p.Currency),
		html.EscapeString(p.Donee.CompanyName),
		html.EscapeString(p.Donee.CompanyAddress),
		html.EscapeString(p.Donee.RegistrationNumber),
	)
}
