package dispatch_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/babyccino/donationreceipt-backend/internal/db"
	"github.com/babyccino/donationreceipt-backend/internal/dispatch"
	"github.com/babyccino/donationreceipt-backend/internal/donation"
	"github.com/babyccino/donationreceipt-backend/internal/email"
	"github.com/babyccino/donationreceipt-backend/internal/qbo"
	"github.com/babyccino/donationreceipt-backend/internal/store"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubMailer records sent messages and can fail or reject specific
// recipients by address.
type stubMailer struct {
	mu       sync.Mutex
	sent     []email.Message
	failFor  map[string]error
	rejected map[string]bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func (m *stubMailer) Send(_ context.Context, msg email.Message) (email.SendResult, error) {
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.maxInFlight.Load()
		if current <= peak || m.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	if err := m.failFor[msg.To]; err != nil {
		return email.SendResult{}, err
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	if m.rejected[msg.To] {
		return email.SendResult{Rejected: true}, nil
	}
	return email.SendResult{MessageID: "msg-" + msg.To}, nil
}

// stubOutcomeStore records FinishReceipts calls.
type stubOutcomeStore struct {
	mu       sync.Mutex
	calls    int
	campaign uuid.UUID
	outcomes []store.ReceiptOutcome
	err      error
}

func (s *stubOutcomeStore) FinishReceipts(_ context.Context, campaignID uuid.UUID, outcomes []store.ReceiptOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.campaign = campaignID
	s.outcomes = outcomes
	return s.err
}

func (s *stubOutcomeStore) outcomeFor(donorID string) (store.ReceiptOutcome, bool) {
	for _, o := range s.outcomes {
		if o.DonorID == donorID {
			return o, true
		}
	}
	return store.ReceiptOutcome{}, false
}

// ─── FIXTURES ─────────────────────────────────────────────────────────────────

func senderPayload(donorIDs ...string) dispatch.Payload {
	recipients := make([]dispatch.PayloadRecipient, len(donorIDs))
	for i, id := range donorIDs {
		recipients[i] = dispatch.PayloadRecipient{
			Donation: donation.Donation{
				Name:    "Donor " + id,
				DonorID: id,
				Total:   decimal.NewFromInt(100),
				Items: []donation.Item{
					{ID: "1", Name: "General Fund", Total: decimal.NewFromInt(100)},
				},
				Address: "123 Main St",
			},
			Email:         "donor" + id + "@example.com",
			ReceiptNumber: 202300001 + int64(i),
		}
	}
	return dispatch.Payload{
		CampaignID: uuid.New(),
		AccountID:  uuid.New(),
		FromAddr:   "treasurer@springfield.org",
		FromName:   "Springfield Charitable Trust",
		EmailBody:  "Dear FULL_NAME, thank you for your support.",
		Donee: db.DoneeInfo{
			CompanyName:        "Springfield Charitable Trust",
			CompanyAddress:     "99 Legal Rd, Springfield",
			Country:            "CA",
			RegistrationNumber: "123456789RR0001",
			SignatoryName:      "Jane Doe",
		},
		Dates: qbo.DateRange{
			Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Currency:   "CAD",
		Recipients: recipients,
	}
}

// ─── TESTS ────────────────────────────────────────────────────────────────────

func TestSendCampaign_AllDelivered(t *testing.T) {
	mailer := &stubMailer{}
	st := &stubOutcomeStore{}
	sender := dispatch.NewSender(mailer, st, 2, testLogger())

	payload := senderPayload("1", "2", "3")
	if err := sender.SendCampaign(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mailer.sent) != 3 {
		t.Fatalf("got %d sends, want 3", len(mailer.sent))
	}
	if st.calls != 1 {
		t.Fatalf("got %d FinishReceipts calls, want 1", st.calls)
	}
	if st.campaign != payload.CampaignID {
		t.Error("outcomes recorded against wrong campaign")
	}
	for _, id := range []string{"1", "2", "3"} {
		outcome, ok := st.outcomeFor(id)
		if !ok {
			t.Fatalf("no outcome for donor %s", id)
		}
		if outcome.Status != db.EmailStatusSent {
			t.Errorf("donor %s status %s, want sent", id, outcome.Status)
		}
		if outcome.EmailID == "" {
			t.Errorf("donor %s missing provider message id", id)
		}
	}
}

// One recipient failing must not stop the others, and the batch outcome must
// record every recipient exactly once.
func TestSendCampaign_OneFailureIsolated(t *testing.T) {
	mailer := &stubMailer{
		failFor: map[string]error{"donor2@example.com": errors.New("smtp unavailable")},
	}
	st := &stubOutcomeStore{}
	sender := dispatch.NewSender(mailer, st, 2, testLogger())

	payload := senderPayload("1", "2", "3")
	if err := sender.SendCampaign(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mailer.sent) != 2 {
		t.Fatalf("got %d successful sends, want 2", len(mailer.sent))
	}
	if st.calls != 1 {
		t.Fatalf("got %d FinishReceipts calls, want 1 covering the whole batch", st.calls)
	}
	if len(st.outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(st.outcomes))
	}

	failed, _ := st.outcomeFor("2")
	if failed.Status != db.EmailStatusNotSent {
		t.Errorf("failed donor status %s, want not_sent", failed.Status)
	}
	if failed.EmailID != "" {
		t.Errorf("failed donor carries message id %q", failed.EmailID)
	}
	for _, id := range []string{"1", "3"} {
		outcome, _ := st.outcomeFor(id)
		if outcome.Status != db.EmailStatusSent {
			t.Errorf("donor %s status %s, want sent", id, outcome.Status)
		}
	}
}

func TestSendCampaign_RejectedRecipientMarkedBounced(t *testing.T) {
	mailer := &stubMailer{rejected: map[string]bool{"donor1@example.com": true}}
	st := &stubOutcomeStore{}
	sender := dispatch.NewSender(mailer, st, 1, testLogger())

	if err := sender.SendCampaign(context.Background(), senderPayload("1", "2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bounced, _ := st.outcomeFor("1")
	if bounced.Status != db.EmailStatusBounced {
		t.Errorf("rejected donor status %s, want bounced", bounced.Status)
	}
	if bounced.EmailID != "" {
		t.Errorf("bounced donor carries message id %q", bounced.EmailID)
	}
	sent, _ := st.outcomeFor("2")
	if sent.Status != db.EmailStatusSent {
		t.Errorf("donor 2 status %s, want sent", sent.Status)
	}
}

func TestSendCampaign_ConcurrencyBounded(t *testing.T) {
	mailer := &stubMailer{delay: 20 * time.Millisecond}
	st := &stubOutcomeStore{}
	sender := dispatch.NewSender(mailer, st, 2, testLogger())

	if err := sender.SendCampaign(context.Background(), senderPayload("1", "2", "3", "4", "5", "6")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if peak := mailer.maxInFlight.Load(); peak > 2 {
		t.Errorf("observed %d concurrent sends, bound is 2", peak)
	}
}

func TestSendCampaign_MessageContents(t *testing.T) {
	mailer := &stubMailer{}
	st := &stubOutcomeStore{}
	sender := dispatch.NewSender(mailer, st, 1, testLogger())

	payload := senderPayload("7")
	if err := sender.SendCampaign(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("got %d sends, want 1", len(mailer.sent))
	}

	msg := mailer.sent[0]
	if msg.FromAddr != "treasurer@springfield.org" || msg.FromName != "Springfield Charitable Trust" {
		t.Errorf("sender %q <%s>", msg.FromName, msg.FromAddr)
	}
	if msg.To != "donor7@example.com" {
		t.Errorf("got recipient %s", msg.To)
	}
	if msg.Subject != "Your 2023 Springfield Charitable Trust Donation Receipt" {
		t.Errorf("got subject %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Donor 7") {
		t.Error("body template placeholder was not substituted")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.Filename != "receipt-202300001.pdf" || att.ContentType != "application/pdf" {
		t.Errorf("attachment %s (%s)", att.Filename, att.ContentType)
	}
	if len(att.Content) == 0 {
		t.Error("attachment is empty")
	}
	// The delivery webhook matches events back to receipts via these.
	if msg.CampaignID != payload.CampaignID.String() || msg.DonorID != "7" {
		t.Errorf("routing ids %s / %s", msg.CampaignID, msg.DonorID)
	}
}

func TestSendCampaign_FinishReceiptsErrorSurfaces(t *testing.T) {
	mailer := &stubMailer{}
	st := &stubOutcomeStore{err: errors.New("db down")}
	sender := dispatch.NewSender(mailer, st, 1, testLogger())

	err := sender.SendCampaign(context.Background(), senderPayload("1"))
	if err == nil {
		t.Fatal("expected bookkeeping error to surface")
	}
	// The email itself went out; only the record write failed.
	if len(mailer.sent) != 1 {
		t.Errorf("got %d sends, want 1", len(mailer.sent))
	}
}
