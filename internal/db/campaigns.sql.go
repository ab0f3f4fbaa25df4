package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const createCampaign = `
INSERT INTO campaigns (id, account_id, start_date, end_date)
VALUES ($1, $2, $3, $4)
RETURNING id, account_id, start_date, end_date, dispatched_at, created_at
`

type CreateCampaignParams struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	StartDate time.Time
	EndDate   time.Time
}

func (q *Queries) CreateCampaign(ctx context.Context, arg CreateCampaignParams) (Campaign, error) {
	row := q.db.QueryRowContext(ctx, createCampaign, arg.ID, arg.AccountID, arg.StartDate, arg.EndDate)
	return scanCampaign(row)
}

const getCampaignByID = `
SELECT id, account_id, start_date, end_date, dispatched_at, created_at
FROM campaigns
WHERE id = $1
`

func (q *Queries) GetCampaignByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, getCampaignByID, id))
}

const countCampaignsSince = `
SELECT count(*)
FROM campaigns
WHERE account_id = $1 AND created_at > $2
`

type CountCampaignsSinceParams struct {
	AccountID uuid.UUID
	Since     time.Time
}

func (q *Queries) CountCampaignsSince(ctx context.Context, arg CountCampaignsSinceParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countCampaignsSince, arg.AccountID, arg.Since).Scan(&count)
	return count, err
}

const listCampaignsByAccount = `
SELECT c.id, c.account_id, c.start_date, c.end_date, c.dispatched_at, c.created_at,
       count(r.id)                                              AS receipt_count,
       count(r.id) FILTER (WHERE r.email_status <> 'not_sent')  AS sent_count
FROM campaigns c
LEFT JOIN receipts r ON r.campaign_id = c.id
WHERE c.account_id = $1
GROUP BY c.id
ORDER BY c.created_at DESC
`

type ListCampaignsByAccountRow struct {
	Campaign
	ReceiptCount int64
	SentCount    int64
}

func (q *Queries) ListCampaignsByAccount(ctx context.Context, accountID uuid.UUID) ([]ListCampaignsByAccountRow, error) {
	rows, err := q.db.QueryContext(ctx, listCampaignsByAccount, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListCampaignsByAccountRow
	for rows.Next() {
		var i ListCampaignsByAccountRow
		if err := rows.Scan(
			&i.ID, &i.AccountID, &i.StartDate, &i.EndDate, &i.DispatchedAt, &i.CreatedAt,
			&i.ReceiptCount, &i.SentCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listUndispatchedCampaigns = `
SELECT id, account_id, start_date, end_date, dispatched_at, created_at
FROM campaigns
WHERE dispatched_at IS NULL
ORDER BY created_at
`

func (q *Queries) ListUndispatchedCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := q.db.QueryContext(ctx, listUndispatchedCampaigns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.AccountID, &c.StartDate, &c.EndDate, &c.DispatchedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const markCampaignDispatched = `
UPDATE campaigns
SET dispatched_at = now()
WHERE id = $1
RETURNING id, account_id, start_date, end_date, dispatched_at, created_at
`

func (q *Queries) MarkCampaignDispatched(ctx context.Context, id uuid.UUID) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, markCampaignDispatched, id))
}

// advanceReceiptCounter atomically moves the per-account per-year sequence
// forward and returns its new value. The upsert takes a row lock, so two
// concurrent campaign creations for one account serialize here instead of
// computing overlapping ranges.
const advanceReceiptCounter = `
INSERT INTO receipt_counters (account_id, year, counter)
VALUES ($1, $2, $3)
ON CONFLICT (account_id, year) DO UPDATE
SET counter = receipt_counters.counter + EXCLUDED.counter
RETURNING counter
`

type AdvanceReceiptCounterParams struct {
	AccountID uuid.UUID
	Year      int32
	By        int32
}

func (q *Queries) AdvanceReceiptCounter(ctx context.Context, arg AdvanceReceiptCounterParams) (int32, error) {
	var counter int32
	err := q.db.QueryRowContext(ctx, advanceReceiptCounter, arg.AccountID, arg.Year, arg.By).Scan(&counter)
	return counter, err
}

func scanCampaign(row *sql.Row) (Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.AccountID, &c.StartDate, &c.EndDate, &c.DispatchedAt, &c.CreatedAt)
	return c, err
}
