// Package stripe defines the interface for Stripe webhook verification and
// the subscription helpers used by the api and dispatch packages.
package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/babyccino/donationreceipt-backend/internal/db"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Event is a parsed Stripe webhook event. DataRaw contains the raw JSON of the
// event's data.object so handlers can unmarshal only what they need.
type Event struct {
	ID      string
	Type    string
	DataRaw json.RawMessage
}

// ─── CLIENT INTERFACE ─────────────────────────────────────────────────────────

// Client is the interface the api package uses for Stripe calls. The
// concrete implementation wraps the official stripe-go SDK. Tests inject a
// stub.
type Client interface {
	// VerifyWebhook validates the Stripe-Signature header and returns the
	// parsed event. Returns an error if the signature is invalid or expired.
	VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error)
}

// ─── ENTITLEMENT ──────────────────────────────────────────────────────────────

// IsSubscribed reports whether the stored subscription currently entitles the
// account to send campaigns. An active subscription always qualifies; a
// lapsed one still qualifies until its paid period runs out.
func IsSubscribed(sub db.Subscription) bool {
	if sub.Status == "active" {
		return true
	}
	return sub.CurrentPeriodEnd.After(time.Now())
}

// ─── HELPERS USED BY api/ ────────────────────────────────────────────────────

// SubscriptionUpdate is the subset of a Stripe subscription object the
// webhook handler persists.
type SubscriptionUpdate struct {
	ID                string
	AccountID         uuid.UUID
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
}

// ExtractSubscription parses a customer.subscription.* event's data.object.
// The account id rides in the subscription's metadata, set when the checkout
// session was created.
func ExtractSubscription(event Event) (SubscriptionUpdate, error) {
	var obj struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
		CurrentPeriodEnd  int64  `json:"current_period_end"`
		Metadata          struct {
			AccountID string `json:"accountId"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil {
		return SubscriptionUpdate{}, fmt.Errorf("stripe: unmarshal subscription: %w", err)
	}
	if obj.ID == "" {
		return SubscriptionUpdate{}, fmt.Errorf("stripe: subscription id is empty in event %s", event.ID)
	}
	accountID, err := uuid.Parse(obj.Metadata.AccountID)
	if err != nil {
		return SubscriptionUpdate{}, fmt.Errorf("stripe: bad accountId metadata in event %s: %w", event.ID, err)
	}

	return SubscriptionUpdate{
		ID:                obj.ID,
		AccountID:         accountID,
		Status:            obj.Status,
		CancelAtPeriodEnd: obj.CancelAtPeriodEnd,
		CurrentPeriodEnd:  time.Unix(obj.CurrentPeriodEnd, 0).UTC(),
	}, nil
}

// ToUpsertParams converts an extracted subscription into db upsert params.
func ToUpsertParams(sub SubscriptionUpdate) db.UpsertSubscriptionParams {
	return db.UpsertSubscriptionParams{
		ID:                sub.ID,
		AccountID:         sub.AccountID,
		Status:            sub.Status,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
	}
}
