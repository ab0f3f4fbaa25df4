package db

import (
	"context"
	"database/sql"

	"github.com/sqlc-dev/pqtype"
)

// insertWebhookEvent records an incoming external event. The unique
// (source, event_id) constraint makes duplicate deliveries surface as
// sql.ErrNoRows from the RETURNING clause, which handlers treat as
// idempotent success.
const insertWebhookEvent = `
INSERT INTO webhook_events (source, event_id, type, payload)
VALUES ($1, $2, $3, $4)
ON CONFLICT (source, event_id) DO NOTHING
RETURNING id, source, event_id, type, payload, processed_at, error, created_at
`

type InsertWebhookEventParams struct {
	Source  string
	EventID string
	Type    string
	Payload pqtype.NullRawMessage
}

func (q *Queries) InsertWebhookEvent(ctx context.Context, arg InsertWebhookEventParams) (WebhookEvent, error) {
	row := q.db.QueryRowContext(ctx, insertWebhookEvent, arg.Source, arg.EventID, arg.Type, arg.Payload)
	return scanWebhookEvent(row)
}

const markWebhookEventProcessed = `
UPDATE webhook_events
SET processed_at = now()
WHERE source = $1 AND event_id = $2
RETURNING id, source, event_id, type, payload, processed_at, error, created_at
`

type MarkWebhookEventProcessedParams struct {
	Source  string
	EventID string
}

func (q *Queries) MarkWebhookEventProcessed(ctx context.Context, arg MarkWebhookEventProcessedParams) (WebhookEvent, error) {
	row := q.db.QueryRowContext(ctx, markWebhookEventProcessed, arg.Source, arg.EventID)
	return scanWebhookEvent(row)
}

const markWebhookEventFailed = `
UPDATE webhook_events
SET error = $3
WHERE source = $1 AND event_id = $2
RETURNING id, source, event_id, type, payload, processed_at, error, created_at
`

type MarkWebhookEventFailedParams struct {
	Source  string
	EventID string
	Error   sql.NullString
}

func (q *Queries) MarkWebhookEventFailed(ctx context.Context, arg MarkWebhookEventFailedParams) (WebhookEvent, error) {
	row := q.db.QueryRowContext(ctx, markWebhookEventFailed, arg.Source, arg.EventID, arg.Error)
	return scanWebhookEvent(row)
}

func scanWebhookEvent(row *sql.Row) (WebhookEvent, error) {
	var w WebhookEvent
	err := row.Scan(&w.ID, &w.Source, &w.EventID, &w.Type, &w.Payload, &w.ProcessedAt, &w.Error, &w.CreatedAt)
	return w, err
}
