package db

import (
	"context"

	"github.com/google/uuid"
)

// Querier is the query surface handlers, the store, and the worker depend on.
// Tests substitute a stub.
type Querier interface {
	// accounts.sql.go
	GetAccountBySessionToken(ctx context.Context, sessionToken string) (Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error)
	UpdateAccountTokens(ctx context.Context, arg UpdateAccountTokensParams) (Account, error)
	GetUserData(ctx context.Context, accountID uuid.UUID) (UserData, error)
	GetDoneeInfo(ctx context.Context, accountID uuid.UUID) (DoneeInfo, error)
	GetSubscriptionByAccount(ctx context.Context, accountID uuid.UUID) (Subscription, error)
	UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) (Subscription, error)

	// campaigns.sql.go
	CreateCampaign(ctx context.Context, arg CreateCampaignParams) (Campaign, error)
	GetCampaignByID(ctx context.Context, id uuid.UUID) (Campaign, error)
	CountCampaignsSince(ctx context.Context, arg CountCampaignsSinceParams) (int64, error)
	ListCampaignsByAccount(ctx context.Context, accountID uuid.UUID) ([]ListCampaignsByAccountRow, error)
	ListUndispatchedCampaigns(ctx context.Context) ([]Campaign, error)
	MarkCampaignDispatched(ctx context.Context, id uuid.UUID) (Campaign, error)
	AdvanceReceiptCounter(ctx context.Context, arg AdvanceReceiptCounterParams) (int32, error)

	// receipts.sql.go
	CreateReceipt(ctx context.Context, arg CreateReceiptParams) (Receipt, error)
	ListReceiptsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]Receipt, error)
	UpdateReceiptSendOutcome(ctx context.Context, arg UpdateReceiptSendOutcomeParams) (Receipt, error)
	UpdateReceiptDeliveryStatus(ctx context.Context, arg UpdateReceiptDeliveryStatusParams) (Receipt, error)

	// webhook_events.sql.go
	InsertWebhookEvent(ctx context.Context, arg InsertWebhookEventParams) (WebhookEvent, error)
	MarkWebhookEventProcessed(ctx context.Context, arg MarkWebhookEventProcessedParams) (WebhookEvent, error)
	MarkWebhookEventFailed(ctx context.Context, arg MarkWebhookEventFailedParams) (WebhookEvent, error)
}

var _ Querier = (*Queries)(nil)
