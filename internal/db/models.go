package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

// EmailStatus is the per-receipt delivery state. This subsystem only writes
// NotSent, Sent, and Bounced; the remaining states are driven by the
// delivery webhook.
type EmailStatus string

const (
	EmailStatusNotSent        EmailStatus = "not_sent"
	EmailStatusSent           EmailStatus = "sent"
	EmailStatusDelivered      EmailStatus = "delivered"
	EmailStatusDeliveryDelay  EmailStatus = "delivery_delayed"
	EmailStatusComplained     EmailStatus = "complained"
	EmailStatusBounced        EmailStatus = "bounced"
	EmailStatusOpened         EmailStatus = "opened"
	EmailStatusClicked        EmailStatus = "clicked"
)

// Account is a connected QBO company plus the user contact details needed to
// send from their address. Session issuance itself is handled by the identity
// collaborator; this subsystem only resolves the opaque token.
type Account struct {
	ID                    uuid.UUID
	Email                 string
	SessionToken          string
	AccessToken           sql.NullString
	RefreshToken          sql.NullString
	RealmID               sql.NullString
	ExpiresAt             sql.NullTime
	RefreshTokenExpiresAt sql.NullTime
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UserData is the account's current report configuration: the selected item
// ids (comma separated, as the browser submits them) and the date range.
type UserData struct {
	AccountID uuid.UUID
	Items     sql.NullString
	StartDate time.Time
	EndDate   time.Time
	UpdatedAt time.Time
}

// DoneeInfo is the charity's receipt letterhead data.
type DoneeInfo struct {
	AccountID          uuid.UUID
	CompanyName        string
	CompanyAddress     string
	Country            string
	RegistrationNumber string
	SignatoryName      string
	Signature          string
	SmallLogo          string
}

// Subscription mirrors the Stripe subscription backing the entitlement check.
type Subscription struct {
	ID                string
	AccountID         uuid.UUID
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Campaign is one send action. DispatchedAt is set once the send job has run
// to completion; campaigns where it stays null never finished sending and
// are flagged by the worker watchdog.
type Campaign struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	StartDate    time.Time
	EndDate      time.Time
	DispatchedAt sql.NullTime
	CreatedAt    time.Time
}

// Receipt is one recipient within a campaign, keyed by campaign + donor.
// Rows are appended at campaign creation and only ever updated afterwards.
type Receipt struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	DonorID       string
	Name          string
	Email         string
	Total         decimal.Decimal
	ReceiptNumber int64
	EmailStatus   EmailStatus
	EmailID       sql.NullString
	CreatedAt     time.Time
}

// WebhookEvent stores every received external event (stripe, email delivery)
// for idempotent processing.
type WebhookEvent struct {
	ID          uuid.UUID
	Source      string
	EventID     string
	Type        string
	Payload     pqtype.NullRawMessage
	ProcessedAt sql.NullTime
	Error       sql.NullString
	CreatedAt   time.Time
}
