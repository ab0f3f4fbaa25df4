package store_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/babyccino/donationreceipt-backend/internal/db"
	"github.com/babyccino/donationreceipt-backend/internal/store"
)

// ─── TEST INFRASTRUCTURE ──────────────────────────────────────────────────────

// openTestDB returns a *sql.DB from DATABASE_URL. Skips if the env var is
// not set so the test suite still passes in CI without a Postgres instance.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set — skipping store integration tests")
	}
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if err := pool.PingContext(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// seedAccount inserts a minimal account and registers cleanup for it and
// everything hanging off it (campaigns, receipts, counters cascade).
func seedAccount(t *testing.T, ctx context.Context, pool *sql.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.ExecContext(ctx,
		`INSERT INTO accounts (id, email, session_token) VALUES ($1, $2, $3)`,
		id, fmt.Sprintf("%s@example.com", t.Name()), fmt.Sprintf("tok_%s_%s", t.Name(), id))
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.ExecContext(ctx, "DELETE FROM accounts WHERE id=$1", id)
	})
	return id
}

func campaignParams(accountID uuid.UUID, donorIDs ...string) store.CreateCampaignParams {
	recipients := make([]store.Recipient, len(donorIDs))
	for i, donorID := range donorIDs {
		recipients[i] = store.Recipient{
			DonorID: donorID,
			Name:    "Donor " + donorID,
			Email:   "donor" + donorID + "@example.com",
			Total:   decimal.RequireFromString("100.00"),
		}
	}
	return store.CreateCampaignParams{
		AccountID:  accountID,
		StartDate:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		Recipients: recipients,
	}
}

// ─── CreateCampaign ───────────────────────────────────────────────────────────

func TestCreateCampaign_InsertsCampaignAndReceipts(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	q := db.New(pool)
	st := store.New(pool, q)

	accountID := seedAccount(t, ctx, pool)

	creation, err := st.CreateCampaign(ctx, campaignParams(accountID, "7", "3"))
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	if creation.Campaign.AccountID != accountID {
		t.Error("campaign account mismatch")
	}
	if creation.Campaign.DispatchedAt.Valid {
		t.Error("new campaign must not be marked dispatched")
	}
	if len(creation.Receipts) != 2 {
		t.Fatalf("got %d receipts, want 2", len(creation.Receipts))
	}

	stored, err := q.ListReceiptsByCampaign(ctx, creation.Campaign.ID)
	if err != nil {
		t.Fatalf("ListReceiptsByCampaign: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("got %d stored receipts, want 2", len(stored))
	}
	for _, r := range stored {
		if r.EmailStatus != db.EmailStatusNotSent {
			t.Errorf("receipt %s status %s, want not_sent", r.DonorID, r.EmailStatus)
		}
	}
}

func TestCreateCampaign_ReceiptNumbersSequential(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	q := db.New(pool)
	st := store.New(pool, q)

	accountID := seedAccount(t, ctx, pool)

	first, err := st.CreateCampaign(ctx, campaignParams(accountID, "1", "2", "3"))
	if err != nil {
		t.Fatalf("first CreateCampaign: %v", err)
	}
	second, err := st.CreateCampaign(ctx, campaignParams(accountID, "4"))
	if err != nil {
		t.Fatalf("second CreateCampaign: %v", err)
	}

	year := int64(time.Now().Year())
	for i, r := range first.Receipts {
		want := year*100000 + int64(i) + 1
		if r.ReceiptNumber != want {
			t.Errorf("receipt %d number %d, want %d", i, r.ReceiptNumber, want)
		}
	}
	// The second campaign continues where the first left off, no gaps, no
	// overlap.
	if got, want := second.Receipts[0].ReceiptNumber, year*100000+4; got != want {
		t.Errorf("second campaign receipt number %d, want %d", got, want)
	}
	if second.CounterStart != first.CounterStart+int32(len(first.Receipts)) {
		t.Errorf("counter start %d does not follow %d+%d",
			second.CounterStart, first.CounterStart, len(first.Receipts))
	}
}

func TestCreateCampaign_RateLimited(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	q := db.New(pool)
	st := store.New(pool, q)

	accountID := seedAccount(t, ctx, pool)

	for i := 0; i < 5; i++ {
		if _, err := st.CreateCampaign(ctx, campaignParams(accountID, fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("campaign %d: %v", i, err)
		}
	}

	_, err := st.CreateCampaign(ctx, campaignParams(accountID, "99"))
	if !errors.Is(err, store.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on the sixth campaign, got: %v", err)
	}

	// The rejected attempt must not have advanced the counter.
	creation, err := st.CreateCampaign(ctx, campaignParams(seedAccount(t, ctx, pool), "1"))
	if err != nil {
		t.Fatalf("fresh account: %v", err)
	}
	if creation.CounterStart != 1 {
		t.Errorf("fresh account counter start %d, want 1", creation.CounterStart)
	}
}

func TestCreateCampaign_OldCampaignsOutsideWindow(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	st := store.New(pool, db.New(pool))

	accountID := seedAccount(t, ctx, pool)

	// Five campaigns created more than 24h ago must not count.
	for i := 0; i < 5; i++ {
		_, err := pool.ExecContext(ctx,
			`INSERT INTO campaigns (id, account_id, start_date, end_date, created_at)
			 VALUES ($1, $2, '2023-01-01', '2023-12-31', now() - interval '25 hours')`,
			uuid.New(), accountID)
		if err != nil {
			t.Fatalf("seed old campaign: %v", err)
		}
	}

	if _, err := st.CreateCampaign(ctx, campaignParams(accountID, "1")); err != nil {
		t.Fatalf("expected old campaigns to be outside the window: %v", err)
	}
}

func TestCreateCampaign_NoRecipientsRejected(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	st := store.New(pool, db.New(pool))

	accountID := seedAccount(t, ctx, pool)

	if _, err := st.CreateCampaign(ctx, campaignParams(accountID)); err == nil {
		t.Fatal("expected error for empty recipient list")
	}
}

// ─── FinishReceipts ───────────────────────────────────────────────────────────

func TestFinishReceipts_RecordsOutcomesAndMarksDispatched(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	q := db.New(pool)
	st := store.New(pool, q)

	accountID := seedAccount(t, ctx, pool)
	creation, err := st.CreateCampaign(ctx, campaignParams(accountID, "7", "3", "9"))
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	err = st.FinishReceipts(ctx, creation.Campaign.ID, []store.ReceiptOutcome{
		{DonorID: "7", Status: db.EmailStatusSent, EmailID: "msg-7"},
		{DonorID: "3", Status: db.EmailStatusBounced},
		{DonorID: "9", Status: db.EmailStatusNotSent},
	})
	if err != nil {
		t.Fatalf("FinishReceipts: %v", err)
	}

	campaign, err := q.GetCampaignByID(ctx, creation.Campaign.ID)
	if err != nil {
		t.Fatalf("GetCampaignByID: %v", err)
	}
	if !campaign.DispatchedAt.Valid {
		t.Error("expected dispatched_at to be set")
	}

	receipts, err := q.ListReceiptsByCampaign(ctx, creation.Campaign.ID)
	if err != nil {
		t.Fatalf("ListReceiptsByCampaign: %v", err)
	}
	byDonor := map[string]db.Receipt{}
	for _, r := range receipts {
		byDonor[r.DonorID] = r
	}
	if r := byDonor["7"]; r.EmailStatus != db.EmailStatusSent || !r.EmailID.Valid || r.EmailID.String != "msg-7" {
		t.Errorf("donor 7: %+v", r)
	}
	if r := byDonor["3"]; r.EmailStatus != db.EmailStatusBounced || r.EmailID.Valid {
		t.Errorf("donor 3: %+v", r)
	}
	if r := byDonor["9"]; r.EmailStatus != db.EmailStatusNotSent {
		t.Errorf("donor 9: %+v", r)
	}
}

func TestFinishReceipts_CampaignNoLongerListedUndispatched(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	q := db.New(pool)
	st := store.New(pool, q)

	accountID := seedAccount(t, ctx, pool)
	creation, err := st.CreateCampaign(ctx, campaignParams(accountID, "7"))
	if err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}

	undispatched, err := q.ListUndispatchedCampaigns(ctx)
	if err != nil {
		t.Fatalf("ListUndispatchedCampaigns: %v", err)
	}
	if !containsCampaign(undispatched, creation.Campaign.ID) {
		t.Error("new campaign should be listed undispatched")
	}

	err = st.FinishReceipts(ctx, creation.Campaign.ID, []store.ReceiptOutcome{
		{DonorID: "7", Status: db.EmailStatusSent, EmailID: "msg-7"},
	})
	if err != nil {
		t.Fatalf("FinishReceipts: %v", err)
	}

	undispatched, err = q.ListUndispatchedCampaigns(ctx)
	if err != nil {
		t.Fatalf("ListUndispatchedCampaigns: %v", err)
	}
	if containsCampaign(undispatched, creation.Campaign.ID) {
		t.Error("finished campaign still listed undispatched")
	}
}

func containsCampaign(campaigns []db.Campaign, id uuid.UUID) bool {
	for _, c := range campaigns {
		if c.ID == id {
			return true
		}
	}
	return false
}
