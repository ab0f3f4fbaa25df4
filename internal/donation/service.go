package donation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/babyccino/donationreceipt-backend/internal/qbo"
)

// Service produces the final donation set for an account: it fetches the
// sales report and the customer list concurrently, then runs the pure
// aggregation and enrichment steps in order.
//
// The dispatch pipeline depends on this being deterministic for unchanged
// remote data: two calls with the same inputs must yield the same donations,
// and therefore the same checksum.
type Service struct {
	client *qbo.Client
	logger *slog.Logger
}

// NewService wraps a qbo.Client.
func NewService(client *qbo.Client, logger *slog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// GetDonations computes the per-donor donation set for the date range and
// selected item ids. Both remote fetches are I/O bound and independent, so
// they are issued concurrently; the transformation itself never suspends.
func (s *Service) GetDonations(
	ctx context.Context,
	accessToken, realmID string,
	dates qbo.DateRange,
	selectedItemIDs []string,
) ([]Donation, error) {
	var (
		wg        sync.WaitGroup
		report    *qbo.SalesReport
		customers qbo.CustomerQueryResult
		reportErr error
		custErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		report, reportErr = s.client.SalesReport(ctx, accessToken, realmID, dates)
	}()
	go func() {
		defer wg.Done()
		customers, custErr = s.client.Customers(ctx, accessToken, realmID)
	}()
	wg.Wait()

	if reportErr != nil {
		return nil, reportErr
	}
	if custErr != nil {
		return nil, custErr
	}

	selected := make(map[string]bool, len(selectedItemIDs))
	for _, id := range selectedItemIDs {
		selected[id] = true
	}

	aggregated, err := Aggregate(report, selected)
	if err != nil {
		return nil, err
	}

	enriched, err := Enrich(aggregated, customers.QueryResponse.Customer)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("donations computed",
		"realm_id", realmID,
		"rows", len(report.Rows.Row),
		"customers", len(customers.QueryResponse.Customer),
		"donations", len(enriched),
	)
	return enriched, nil
}
