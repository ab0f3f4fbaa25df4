package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const createReceipt = `
INSERT INTO receipts (id, campaign_id, donor_id, name, email, total, receipt_number, email_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'not_sent')
RETURNING id, campaign_id, donor_id, name, email, total, receipt_number, email_status, email_id, created_at
`

type CreateReceiptParams struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	DonorID       string
	Name          string
	Email         string
	Total         decimal.Decimal
	ReceiptNumber int64
}

func (q *Queries) CreateReceipt(ctx context.Context, arg CreateReceiptParams) (Receipt, error) {
	row := q.db.QueryRowContext(ctx, createReceipt,
		arg.ID, arg.CampaignID, arg.DonorID, arg.Name, arg.Email, arg.Total, arg.ReceiptNumber)
	return scanReceipt(row)
}

const listReceiptsByCampaign = `
SELECT id, campaign_id, donor_id, name, email, total, receipt_number, email_status, email_id, created_at
FROM receipts
WHERE campaign_id = $1
ORDER BY receipt_number
`

func (q *Queries) ListReceiptsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]Receipt, error) {
	rows, err := q.db.QueryContext(ctx, listReceiptsByCampaign, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Receipt
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(
			&r.ID, &r.CampaignID, &r.DonorID, &r.Name, &r.Email, &r.Total,
			&r.ReceiptNumber, &r.EmailStatus, &r.EmailID, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateReceiptSendOutcome = `
UPDATE receipts
SET email_status = $3,
    email_id     = $4
WHERE campaign_id = $1 AND donor_id = $2
RETURNING id, campaign_id, donor_id, name, email, total, receipt_number, email_status, email_id, created_at
`

type UpdateReceiptSendOutcomeParams struct {
	CampaignID  uuid.UUID
	DonorID     string
	EmailStatus EmailStatus
	EmailID     sql.NullString
}

func (q *Queries) UpdateReceiptSendOutcome(ctx context.Context, arg UpdateReceiptSendOutcomeParams) (Receipt, error) {
	row := q.db.QueryRowContext(ctx, updateReceiptSendOutcome,
		arg.CampaignID, arg.DonorID, arg.EmailStatus, arg.EmailID)
	return scanReceipt(row)
}

const updateReceiptDeliveryStatus = `
UPDATE receipts
SET email_status = $3
WHERE campaign_id = $1 AND donor_id = $2
RETURNING id, campaign_id, donor_id, name, email, total, receipt_number, email_status, email_id, created_at
`

type UpdateReceiptDeliveryStatusParams struct {
	CampaignID  uuid.UUID
	DonorID     string
	EmailStatus EmailStatus
}

func (q *Queries) UpdateReceiptDeliveryStatus(ctx context.Context, arg UpdateReceiptDeliveryStatusParams) (Receipt, error) {
	row := q.db.QueryRowContext(ctx, updateReceiptDeliveryStatus,
		arg.CampaignID, arg.DonorID, arg.EmailStatus)
	return scanReceipt(row)
}

func scanReceipt(row *sql.Row) (Receipt, error) {
	var r Receipt
	err := row.Scan(
		&r.ID, &r.CampaignID, &r.DonorID, &r.Name, &r.Email, &r.Total,
		&r.ReceiptNumber, &r.EmailStatus, &r.EmailID, &r.CreatedAt,
	)
	return r, err
}
