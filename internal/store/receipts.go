package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/babyccino/donationreceipt-backend/internal/db"
)

// ReceiptOutcome is the final per-recipient result of a send batch.
type ReceiptOutcome struct {
	DonorID string
	Status  db.EmailStatus // sent, bounced, or not_sent for failures
	EmailID string         // provider message id; empty for failures
}

// FinishReceipts writes the outcome of a completed send batch and marks the
// campaign dispatched, in one transaction. Failed recipients are explicitly
// re-marked not_sent rather than left in an ambiguous state, so a later read
// always shows the true result.
//
// This runs after the emails have gone out, so a failure here does not undo
// any send; the worker logs it and the receipts remain queryable in their
// pre-batch state.
func (s *Store) FinishReceipts(ctx context.Context, campaignID uuid.UUID, outcomes []ReceiptOutcome) error {
	return s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		for _, outcome := range outcomes {
			_, err := q.UpdateReceiptSendOutcome(ctx, db.UpdateReceiptSendOutcomeParams{
				CampaignID:  campaignID,
				DonorID:     outcome.DonorID,
				EmailStatus: outcome.Status,
				EmailID: sql.NullString{
					String: outcome.EmailID,
					Valid:  outcome.EmailID != "",
				},
			})
			if err != nil {
				return fmt.Errorf("FinishReceipts: update receipt for donor %s: %w", outcome.DonorID, err)
			}
		}

		if _, err := q.MarkCampaignDispatched(ctx, campaignID); err != nil {
			return fmt.Errorf("FinishReceipts: mark campaign dispatched: %w", err)
		}
		return nil
	})
}
