// Package dispatch contains the receipt-campaign pipeline: the Dispatcher
// validates a send request against freshly recomputed donation data and
// creates the campaign bookkeeping atomically; the Sender fans the receipts
// out to the mail provider with per-recipient failure isolation.
//
// The api package holds a *Dispatcher and calls Dispatch; the worker package
// holds a *Sender and runs queued payloads. Neither direction imports the
// other: hand-off goes through the Enqueuer interface defined here.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/babyccino/donationreceipt-backend/internal/db"
	"github.com/babyccino/donationreceipt-backend/internal/donation"
	"github.com/babyccino/donationreceipt-backend/internal/qbo"
	"github.com/babyccino/donationreceipt-backend/internal/store"
	stripeinternal "github.com/babyccino/donationreceipt-backend/internal/stripe"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// All precondition failures are sentinels so the HTTP layer can map each to
// its status code with errors.Is. None of them is ever retried automatically.
var (
	// ErrNotSubscribed: the account has no active subscription.
	ErrNotSubscribed = errors.New("dispatch: account is not subscribed")

	// ErrDataMissing: the account has no donee info, date range, or item
	// selection configured yet.
	ErrDataMissing = errors.New("dispatch: account setup is incomplete")

	// ErrNoRecipients: the request named no recipients.
	ErrNoRecipients = errors.New("dispatch: recipient list is empty")

	// ErrStaleData: the checksum the browser submitted no longer matches the
	// freshly recomputed donation set. The caller should refetch and
	// re-prompt; retrying the same checksum can never succeed.
	ErrStaleData = errors.New("dispatch: checksum mismatch, donation data has changed")

	// ErrUnknownRecipient: a requested recipient id is not a donor in the
	// recomputed donation set. Unlike ErrStaleData this indicates a caller
	// bug or data-integrity problem, not a benign race.
	ErrUnknownRecipient = errors.New("dispatch: recipient id not present in computed donations")

	// ErrRecipientNoEmail: a requested recipient has no email address on
	// file and therefore cannot receive a receipt.
	ErrRecipientNoEmail = errors.New("dispatch: recipient has no email address on file")
)

// ─── INTERFACES ──────────────────────────────────────────────────────────────

// DonationSource recomputes the donation set. Implemented by
// *donation.Service.
type DonationSource interface {
	GetDonations(ctx context.Context, accessToken, realmID string, dates qbo.DateRange, selectedItemIDs []string) ([]donation.Donation, error)
}

// CampaignStore is the slice of *store.Store the dispatcher needs.
type CampaignStore interface {
	CreateCampaign(ctx context.Context, p store.CreateCampaignParams) (store.CampaignCreation, error)
}

// Enqueuer hands a validated payload to the send worker. Implemented by
// *worker.Runner; tests inject a recorder.
type Enqueuer interface {
	Enqueue(ctx context.Context, p Payload) error
}

// ─── PAYLOAD ─────────────────────────────────────────────────────────────────

// PayloadRecipient pairs one recipient's donation with its pre-assigned
// receipt number and resolved email address.
type PayloadRecipient struct {
	Donation      donation.Donation
	Email         string
	ReceiptNumber int64
}

// Payload is everything the Sender needs to run a campaign without touching
// the dispatcher's data sources again.
type Payload struct {
	CampaignID uuid.UUID
	AccountID  uuid.UUID

	// FromAddr/FromName: receipts go out from the charity user's own address.
	FromAddr string
	FromName string

	EmailBody     string
	Donee         db.DoneeInfo
	Dates         qbo.DateRange
	Currency      string
	Recipients    []PayloadRecipient
}

// ─── DISPATCHER ──────────────────────────────────────────────────────────────

// Dispatcher validates and creates campaigns. All checks run before any row
// is written; once the campaign exists the request cannot fail overall.
type Dispatcher struct {
	q         db.Querier
	store     CampaignStore
	donations DonationSource
	enqueuer  Enqueuer
	logger    *slog.Logger
}

// NewDispatcher constructs a Dispatcher with all required dependencies.
func NewDispatcher(
	q db.Querier,
	st CampaignStore,
	donations DonationSource,
	enqueuer Enqueuer,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		q:         q,
		store:     st,
		donations: donations,
		enqueuer:  enqueuer,
		logger:    logger,
	}
}

// Params is one validated-at-the-HTTP-layer send request. The account is
// already resolved and its QBO tokens are fresh.
type Params struct {
	Account      db.Account
	EmailBody    string
	RecipientIDs []string
	Checksum     string
}

// Dispatch runs the full precondition chain, creates the campaign and its
// receipts atomically, and hands the payload to the send worker:
//
//  1. Entitlement: the account must hold an active subscription.
//  2. The recipient list must be non-empty.
//  3. Donations are recomputed fresh from QBO for the account's configured
//     date range and item selection.
//  4. The submitted checksum must match the recomputed set (stale-data guard).
//  5. Every recipient id must exist in the recomputed set and have an email.
//  6. The campaign + receipts + counter advance commit as one transaction,
//     which also enforces the rolling rate limit (store.ErrRateLimited).
//
// On success the campaign id is returned immediately; sending proceeds in
// the background and per-recipient failures never surface here.
func (d *Dispatcher) Dispatch(ctx context.Context, p Params) (uuid.UUID, error) {
	account := p.Account
	log := d.logger.With("account_id", account.ID)

	// ── 1. Entitlement ────────────────────────────────────────────────────────
	// No subscription row means not subscribed; any other lookup failure is a
	// database problem and must not masquerade as an entitlement denial.
	sub, err := d.q.GetSubscriptionByAccount(ctx, account.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("dispatch: look up subscription: %w", err)
	}
	if err != nil || !stripeinternal.IsSubscribed(sub) {
		return uuid.Nil, ErrNotSubscribed
	}

	// ── 2. Recipients ─────────────────────────────────────────────────────────
	if len(p.RecipientIDs) == 0 {
		return uuid.Nil, ErrNoRecipients
	}

	// ── 3. Recompute donations ────────────────────────────────────────────────
	userData, err := d.q.GetUserData(ctx, account.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: no report configuration", ErrDataMissing)
	}
	if !userData.Items.Valid || userData.Items.String == "" {
		return uuid.Nil, fmt.Errorf("%w: no items selected", ErrDataMissing)
	}
	donee, err := d.q.GetDoneeInfo(ctx, account.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: no donee info", ErrDataMissing)
	}
	if !account.AccessToken.Valid || !account.RealmID.Valid {
		return uuid.Nil, fmt.Errorf("%w: account is not connected to QBO", ErrDataMissing)
	}

	dates := qbo.DateRange{Start: userData.StartDate, End: userData.EndDate}
	donations, err := d.donations.GetDonations(ctx,
		account.AccessToken.String, account.RealmID.String,
		dates, strings.Split(userData.Items.String, ","))
	if err != nil {
		return uuid.Nil, fmt.Errorf("dispatch: recompute donations: %w", err)
	}

	// ── 4. Integrity check ────────────────────────────────────────────────────
	// The checksum the browser submitted was computed over the set it showed
	// the user. If the sales data changed since, the user must see the new
	// totals before anything is sent.
	if donation.Checksum(donations) != p.Checksum {
		return uuid.Nil, ErrStaleData
	}

	// ── 5. Subset + email checks ──────────────────────────────────────────────
	byDonor := make(map[string]*donation.Donation, len(donations))
	for i := range donations {
		byDonor[donations[i].DonorID] = &donations[i]
	}
	requested := make(map[string]bool, len(p.RecipientIDs))
	for _, id := range p.RecipientIDs {
		if _, ok := byDonor[id]; !ok {
			return uuid.Nil, fmt.Errorf("%w: donor %s", ErrUnknownRecipient, id)
		}
		requested[id] = true
	}

	// Recipients keep the report's donation order, not the request order.
	var selected []donation.Donation
	for _, dn := range donations {
		if !requested[dn.DonorID] {
			continue
		}
		if dn.Email == nil {
			return uuid.Nil, fmt.Errorf("%w: donor %s", ErrRecipientNoEmail, dn.DonorID)
		}
		selected = append(selected, dn)
	}

	// ── 6. Atomic create (includes rate limit) ────────────────────────────────
	recipients := make([]store.Recipient, len(selected))
	for i, dn := range selected {
		recipients[i] = store.Recipient{
			DonorID: dn.DonorID,
			Name:    dn.Name,
			Email:   *dn.Email,
			Total:   dn.Total,
		}
	}

	creation, err := d.store.CreateCampaign(ctx, store.CreateCampaignParams{
		AccountID:  account.ID,
		StartDate:  userData.StartDate,
		EndDate:    userData.EndDate,
		Recipients: recipients,
	})
	if err != nil {
		return uuid.Nil, err
	}

	// ── Hand-off ──────────────────────────────────────────────────────────────
	payloadRecipients := make([]PayloadRecipient, len(selected))
	for i, dn := range selected {
		payloadRecipients[i] = PayloadRecipient{
			Donation:      dn,
			Email:         *dn.Email,
			ReceiptNumber: creation.Receipts[i].ReceiptNumber,
		}
	}

	payload := Payload{
		CampaignID: creation.Campaign.ID,
		AccountID:  account.ID,
		FromAddr:   account.Email,
		FromName:   donee.CompanyName,
		EmailBody:  p.EmailBody,
		Donee:      donee,
		Dates:      dates,
		Currency:   currencyForCountry(donee.Country),
		Recipients: payloadRecipients,
	}

	if err := d.enqueuer.Enqueue(ctx, payload); err != nil {
		// The campaign exists and its receipts are not_sent; surfacing an
		// error now would read as total failure to the caller. Log loudly
		// instead — the receipts remain queryable for manual follow-up.
		log.Error("dispatch: enqueue failed, receipts remain not_sent",
			"campaign_id", creation.Campaign.ID, "error", err)
	}

	log.Info("dispatch: campaign created",
		"campaign_id", creation.Campaign.ID,
		"recipients", len(selected),
		"counter_start", creation.CounterStart,
	)
	return creation.Campaign.ID, nil
}

// currencyForCountry picks the display currency for receipts.
func currencyForCountry(country string) string {
	switch country {
	case "US", "United States":
		return "USD"
	case "GB", "United Kingdom":
		return "GBP"
	case "AU", "Australia":
		return "AUD"
	default:
		return "CAD"
	}
}
