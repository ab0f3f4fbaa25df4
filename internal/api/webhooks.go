package api

import (
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/babyccino/donationreceipt-backend/internal/db"
	stripeinternal "github.com/babyccino/donationreceipt-backend/internal/stripe"
)

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

// handleStripeWebhook is the entry point for all Stripe webhook deliveries.
//
// Stripe delivers events at-least-once and may retry on non-2xx responses.
// The handler must be idempotent: every operation it performs uses
// upsert/insert-or-ignore patterns so replays are safe.
//
// The only events we act on are the customer.subscription.* lifecycle, which
// keeps the local subscriptions table (the entitlement source of truth for
// sending) mirrored with Stripe.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// Stripe recommends reading the raw body before any other processing so
	// the signature check runs against the exact bytes Stripe signed.
	r.Body = http.MaxBytesReader(w, r.Body, 65536)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	event, err := s.stripe.VerifyWebhook(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Warn("webhook: invalid stripe signature", "error", err, logField(r))
		respondErr(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	// Idempotency: the unique (source, event_id) insert returns sql.ErrNoRows
	// on a duplicate delivery, which we ack so Stripe stops retrying.
	_, err = s.q.InsertWebhookEvent(r.Context(), db.InsertWebhookEventParams{
		Source:  "stripe",
		EventID: event.ID,
		Type:    event.Type,
		Payload: pqtype.NullRawMessage{RawMessage: payload, Valid: true},
	})
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("webhook: duplicate stripe event, skipping", "event_id", event.ID, logField(r))
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("insert stripe event: %w", err))
		return
	}

	var handlerErr error

	switch event.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		handlerErr = s.onSubscriptionChanged(r, event)

	default:
		// Unknown event type — ack immediately so Stripe stops retrying.
		s.logger.Debug("webhook: unhandled stripe event type", "type", event.Type, logField(r))
	}

	if handlerErr != nil {
		s.logger.Error("webhook: stripe handler error",
			"event_id", event.ID,
			"type", event.Type,
			"error", handlerErr,
			logField(r),
		)
		_, _ = s.q.MarkWebhookEventFailed(r.Context(), db.MarkWebhookEventFailedParams{
			Source:  "stripe",
			EventID: event.ID,
			Error:   sql.NullString{String: handlerErr.Error(), Valid: true},
		})
		// Return 500 so Stripe retries delivery.
		respondErr(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}

	_, _ = s.q.MarkWebhookEventProcessed(r.Context(), db.MarkWebhookEventProcessedParams{
		Source:  "stripe",
		EventID: event.ID,
	})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) onSubscriptionChanged(r *http.Request, event stripeinternal.Event) error {
	sub, err := stripeinternal.ExtractSubscription(event)
	if err != nil {
		return fmt.Errorf("onSubscriptionChanged: %w", err)
	}

	if _, err := s.q.UpsertSubscription(r.Context(), stripeinternal.ToUpsertParams(sub)); err != nil {
		return fmt.Errorf("onSubscriptionChanged: upsert subscription %s: %w", sub.ID, err)
	}

	s.logger.Info("webhook: subscription updated",
		"subscription_id", sub.ID,
		"account_id", sub.AccountID,
		"status", sub.Status,
		logField(r),
	)
	return nil
}

// ─── POST /api/webhooks/email ─────────────────────────────────────────────────

// emailEvent is the delivery-event shape the email provider posts. The
// campaign and donor ids ride in the message headers we set at send time and
// are echoed back on every event.
type emailEvent struct {
	Type string `json:"type"`
	Data struct {
		EmailID string `json:"email_id"`
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"data"`
}

// emailEventStatus maps provider event types onto receipt states. Unlisted
// types are acked and ignored.
var emailEventStatus = map[string]db.EmailStatus{
	"email.sent":             db.EmailStatusSent,
	"email.delivered":        db.EmailStatusDelivered,
	"email.delivery_delayed": db.EmailStatusDeliveryDelay,
	"email.complained":       db.EmailStatusComplained,
	"email.bounced":          db.EmailStatusBounced,
	"email.opened":           db.EmailStatusOpened,
	"email.clicked":          db.EmailStatusClicked,
}

// handleEmailWebhook ingests delivery events and advances the matching
// receipt's email_status. Events for unknown receipts are acked and dropped:
// returning an error would only make the provider retry something we can
// never process.
func (s *Server) handleEmailWebhook(w http.ResponseWriter, r *http.Request) {
	if s.cfg.EmailWebhookSecret != "" {
		secret := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.EmailWebhookSecret)) != 1 {
			respondErr(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, 65536)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	var event emailEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	status, tracked := emailEventStatus[event.Type]
	if !tracked {
		s.logger.Debug("webhook: unhandled email event type", "type", event.Type, logField(r))
		w.WriteHeader(http.StatusOK)
		return
	}

	// Idempotency: the provider has no stable event id in the body, so the
	// delivery id header (set by the forwarder) is used, with the message id
	// + type as fallback. Duplicate deliveries are acked without reprocessing.
	eventID := r.Header.Get("Svix-Id")
	if eventID == "" {
		eventID = event.Data.EmailID + ":" + event.Type
	}
	_, err = s.q.InsertWebhookEvent(r.Context(), db.InsertWebhookEventParams{
		Source:  "resend",
		EventID: eventID,
		Type:    event.Type,
		Payload: pqtype.NullRawMessage{RawMessage: payload, Valid: true},
	})
	if errors.Is(err, sql.ErrNoRows) {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("insert email event: %w", err))
		return
	}

	campaignID, donorID, err := receiptKeyFromHeaders(event)
	if err != nil {
		// Not one of our campaign emails (or headers were stripped). Ack it.
		s.logger.Debug("webhook: email event without receipt key",
			"type", event.Type, "email_id", event.Data.EmailID, logField(r))
		_, _ = s.q.MarkWebhookEventProcessed(r.Context(), db.MarkWebhookEventProcessedParams{
			Source:  "resend",
			EventID: eventID,
		})
		w.WriteHeader(http.StatusOK)
		return
	}

	_, err = s.q.UpdateReceiptDeliveryStatus(r.Context(), db.UpdateReceiptDeliveryStatusParams{
		CampaignID:  campaignID,
		DonorID:     donorID,
		EmailStatus: status,
	})
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("webhook: email event for unknown receipt",
			"campaign_id", campaignID, "donor_id", donorID, logField(r))
	} else if err != nil {
		_, _ = s.q.MarkWebhookEventFailed(r.Context(), db.MarkWebhookEventFailedParams{
			Source:  "resend",
			EventID: eventID,
			Error:   sql.NullString{String: err.Error(), Valid: true},
		})
		s.respondInternalErr(w, r, fmt.Errorf("update receipt status: %w", err))
		return
	}

	_, _ = s.q.MarkWebhookEventProcessed(r.Context(), db.MarkWebhookEventProcessedParams{
		Source:  "resend",
		EventID: eventID,
	})
	w.WriteHeader(http.StatusOK)
}

// receiptKeyFromHeaders extracts the campaign and donor ids from the echoed
// message headers.
func receiptKeyFromHeaders(event emailEvent) (uuid.UUID, string, error) {
	var campaignRaw, donorID string
	for _, h := range event.Data.Headers {
		switch h.Name {
		case "X-Data-Campaign-ID":
			campaignRaw = h.Value
		case "X-Data-Donor-ID":
			donorID = h.Value
		}
	}
	if campaignRaw == "" || donorID == "" {
		return uuid.Nil, "", errors.New("api: event headers carry no receipt key")
	}
	campaignID, err := uuid.Parse(campaignRaw)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("api: bad campaign id header: %w", err)
	}
	return campaignID, donorID, nil
}
