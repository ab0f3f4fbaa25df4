package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/babyccino/donationreceipt-backend/internal/db"
)

// ─── POLICY ──────────────────────────────────────────────────────────────────

const (
	// maxCampaignsPerDay is the rolling-24h campaign cap per account.
	maxCampaignsPerDay = 5

	// receiptNumberYearFactor combines the year with the per-account sequence
	// into a human-readable receipt number: year*100000 + seq.
	receiptNumberYearFactor = 100000
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// Recipient is one receipt-to-be within a new campaign.
type Recipient struct {
	DonorID string
	Name    string
	Email   string
	Total   decimal.Decimal
}

// CreateCampaignParams is everything the dispatcher hands over once every
// precondition that does not need the transaction has passed.
type CreateCampaignParams struct {
	AccountID  uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	Recipients []Recipient
}

// CampaignCreation is the result of a successful atomic create.
type CampaignCreation struct {
	Campaign db.Campaign
	Receipts []db.Receipt

	// CounterStart is the first sequence value assigned to this campaign's
	// receipts within the account's year.
	CounterStart int32
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrRateLimited is returned when the account has already created the maximum
// number of campaigns in the rolling 24-hour window. Callers map this to 429;
// it is never retried automatically.
var ErrRateLimited = errors.New("store: too many campaigns in the last 24 hours")

// ─── METHODS ─────────────────────────────────────────────────────────────────

// CreateCampaign atomically performs the whole campaign write:
//
//  1. Re-checks the rolling-24h rate limit inside the transaction.
//  2. Advances the account's yearly receipt counter by the recipient count.
//  3. Inserts the campaign row.
//  4. Inserts one not_sent receipt row per recipient with its pre-assigned
//     receipt number.
//
// Any failure rolls the whole unit back, so a campaign can never exist
// without its receipts or with a half-advanced counter. Two concurrent
// creations for the same account serialize on the counter row, so sequence
// ranges never overlap.
func (s *Store) CreateCampaign(ctx context.Context, p CreateCampaignParams) (CampaignCreation, error) {
	if len(p.Recipients) == 0 {
		return CampaignCreation{}, fmt.Errorf("store: CreateCampaign called with no recipients")
	}

	var result CampaignCreation

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		now := time.Now()

		count, err := q.CountCampaignsSince(ctx, db.CountCampaignsSinceParams{
			AccountID: p.AccountID,
			Since:     now.Add(-24 * time.Hour),
		})
		if err != nil {
			return fmt.Errorf("CreateCampaign: count recent campaigns: %w", err)
		}
		if count >= maxCampaignsPerDay {
			return ErrRateLimited
		}

		year := int32(now.Year())
		counter, err := q.AdvanceReceiptCounter(ctx, db.AdvanceReceiptCounterParams{
			AccountID: p.AccountID,
			Year:      year,
			By:        int32(len(p.Recipients)),
		})
		if err != nil {
			return fmt.Errorf("CreateCampaign: advance receipt counter: %w", err)
		}
		counterStart := counter - int32(len(p.Recipients)) + 1

		campaign, err := q.CreateCampaign(ctx, db.CreateCampaignParams{
			ID:        uuid.New(),
			AccountID: p.AccountID,
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
		})
		if err != nil {
			return fmt.Errorf("CreateCampaign: insert campaign: %w", err)
		}

		receipts := make([]db.Receipt, len(p.Recipients))
		for i, recipient := range p.Recipients {
			seq := counterStart + int32(i)
			receipt, err := q.CreateReceipt(ctx, db.CreateReceiptParams{
				ID:            uuid.New(),
				CampaignID:    campaign.ID,
				DonorID:       recipient.DonorID,
				Name:          recipient.Name,
				Email:         recipient.Email,
				Total:         recipient.Total,
				ReceiptNumber: int64(year)*receiptNumberYearFactor + int64(seq),
			})
			if err != nil {
				return fmt.Errorf("CreateCampaign: insert receipt for donor %s: %w", recipient.DonorID, err)
			}
			receipts[i] = receipt
		}

		result = CampaignCreation{Campaign: campaign, Receipts: receipts, CounterStart: counterStart}
		return nil
	})

	// Unwrap the sentinel so callers can check with errors.Is without needing
	// to look inside a wrapped error chain.
	if errors.Is(err, ErrRateLimited) {
		return CampaignCreation{}, ErrRateLimited
	}
	if err != nil {
		return CampaignCreation{}, err
	}

	return result, nil
}
