package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/babyccino/donationreceipt-backend/internal/db"
	"github.com/babyccino/donationreceipt-backend/internal/email"
	"github.com/babyccino/donationreceipt-backend/internal/receipt"
	"github.com/babyccino/donationreceipt-backend/internal/store"
)

// defaultSendConcurrency bounds how many receipt emails are in flight at
// once. Resend rate-limits aggressively; a small bound keeps a large
// campaign from tripping it while still overlapping network latency.
const defaultSendConcurrency = 5

// OutcomeStore is the slice of *store.Store the sender needs.
type OutcomeStore interface {
	FinishReceipts(ctx context.Context, campaignID uuid.UUID, outcomes []store.ReceiptOutcome) error
}

// Sender renders and sends a campaign's receipts. One recipient failing
// never affects another: each send's outcome is recorded independently and
// the batch always runs to completion.
type Sender struct {
	mailer      email.Sender
	store       OutcomeStore
	concurrency int
	logger      *slog.Logger
}

// NewSender constructs a Sender. concurrency <= 0 selects the default bound.
func NewSender(mailer email.Sender, st OutcomeStore, concurrency int, logger *slog.Logger) *Sender {
	if concurrency <= 0 {
		concurrency = defaultSendConcurrency
	}
	return &Sender{
		mailer:      mailer,
		store:       st,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SendCampaign fans the payload's receipts out to the mail provider with
// bounded concurrency, then records every outcome and marks the campaign
// dispatched in one transaction. The returned error covers only the final
// bookkeeping write; per-recipient send failures are recorded as not_sent
// and logged, never propagated.
func (s *Sender) SendCampaign(ctx context.Context, p Payload) error {
	log := s.logger.With("campaign_id", p.CampaignID, "account_id", p.AccountID)
	log.Info("sending campaign", "recipients", len(p.Recipients), "concurrency", s.concurrency)

	donationRange := receipt.DonationRange(p.Dates.Start, p.Dates.End)
	subject := fmt.Sprintf("Your %d %s Donation Receipt", p.Dates.End.Year(), p.Donee.CompanyName)
	now := time.Now()

	outcomes := make([]store.ReceiptOutcome, len(p.Recipients))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)
	for i, recipient := range p.Recipients {
		wg.Add(1)
		go func(i int, r PayloadRecipient) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = s.sendOne(ctx, p, r, subject, donationRange, now)
		}(i, recipient)
	}
	wg.Wait()

	sent := 0
	for _, outcome := range outcomes {
		if outcome.Status == db.EmailStatusSent {
			sent++
		}
	}
	log.Info("campaign send finished", "sent", sent, "failed", len(outcomes)-sent)

	if err := s.store.FinishReceipts(ctx, p.CampaignID, outcomes); err != nil {
		return fmt.Errorf("dispatch: record send outcomes: %w", err)
	}
	return nil
}

// sendOne renders and sends a single recipient's receipt. It never panics
// outward and never returns an error; every path resolves to an outcome.
func (s *Sender) sendOne(
	ctx context.Context,
	p Payload,
	r PayloadRecipient,
	subject, donationRange string,
	now time.Time,
) (outcome store.ReceiptOutcome) {
	outcome = store.ReceiptOutcome{DonorID: r.Donation.DonorID, Status: db.EmailStatusNotSent}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic while sending receipt",
				"campaign_id", p.CampaignID, "donor_id", r.Donation.DonorID, "panic", rec)
			outcome.Status = db.EmailStatusNotSent
			outcome.EmailID = ""
		}
	}()

	params := receipt.Params{
		Donee:         p.Donee,
		Donation:      r.Donation,
		ReceiptNumber: r.ReceiptNumber,
		DonationRange: donationRange,
		CurrentDate:   now,
		Currency:      p.Currency,
	}

	pdfBytes, err := receipt.PDF(params)
	if err != nil {
		s.logger.Error("render receipt pdf failed",
			"campaign_id", p.CampaignID, "donor_id", r.Donation.DonorID, "error", err)
		return outcome
	}

	body := receipt.FormatBody(p.EmailBody, r.Donation.Name)
	result, err := s.mailer.Send(ctx, email.Message{
		FromAddr: p.FromAddr,
		FromName: p.FromName,
		To:       r.Email,
		Subject:  subject,
		HTML:     receipt.EmailHTML(params, body),
		Attachments: []email.Attachment{{
			Filename:    fmt.Sprintf("receipt-%d.pdf", r.ReceiptNumber),
			Content:     pdfBytes,
			ContentType: "application/pdf",
		}},
		CampaignID: p.CampaignID.String(),
		DonorID:    r.Donation.DonorID,
	})
	if err != nil {
		s.logger.Error("send receipt failed",
			"campaign_id", p.CampaignID, "donor_id", r.Donation.DonorID, "error", err)
		return outcome
	}

	if result.Rejected {
		outcome.Status = db.EmailStatusBounced
		return outcome
	}

	outcome.Status = db.EmailStatusSent
	outcome.EmailID = result.MessageID
	return outcome
}
