// Package qbo is the QuickBooks Online API client: the customer sales
// report, the paginated customer query, item and company-info queries, and
// OAuth token refresh. Wire shapes live in types.go; the pure transformation
// of report data into donations lives in the donation package.
package qbo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// customerPageSize is QBO's MAXRESULTS ceiling for a single query page.
	customerPageSize = 1000

	// maxStartPosition caps the pagination loop. STARTPOSITION is 1-indexed;
	// ten full pages is far beyond any real customer list and guards against
	// a remote that keeps returning full pages.
	maxStartPosition = 10000
)

// Client talks to the QBO accounting API. Credentials are per-request
// (access token + realm id) because one deployment serves many companies.
type Client struct {
	apiBase      string // e.g. "https://quickbooks.api.intuit.com/v3"
	oauthBase    string // e.g. "https://oauth.platform.intuit.com/oauth2/v1"
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewClient returns a Client. clientID/clientSecret are only used for token
// refresh.
func NewClient(apiBase, oauthBase, clientID, clientSecret string) *Client {
	return &Client{
		apiBase:      strings.TrimRight(apiBase, "/"),
		oauthBase:    strings.TrimRight(oauthBase, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DateRange bounds a sales report query, inclusive on both ends.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ─── REPORT ──────────────────────────────────────────────────────────────────

// SalesReport fetches the CustomerSales report summarised by products and
// services for the date range. A Fault-shaped body is returned as *FaultError
// with the remote message attached.
func (c *Client) SalesReport(ctx context.Context, accessToken, realmID string, dates DateRange) (*SalesReport, error) {
	reqURL := fmt.Sprintf(
		"%s/company/%s/reports/CustomerSales?summarize_column_by=ProductsAndServices&start_date=%s&end_date=%s",
		c.apiBase, url.PathEscape(realmID),
		dates.Start.Format("2006-01-02"), dates.End.Format("2006-01-02"),
	)

	var report SalesReport
	if err := c.getJSON(ctx, accessToken, reqURL, &report); err != nil {
		return nil, fmt.Errorf("qbo: sales report: %w", err)
	}
	return &report, nil
}

// ─── CUSTOMERS ───────────────────────────────────────────────────────────────

// Customers fetches the full customer list, page by page. STARTPOSITION is
// 1-indexed; a page is the last one when it returns fewer than the page size.
// All pages are merged into one logical result via CombinePages.
func (c *Client) Customers(ctx context.Context, accessToken, realmID string) (CustomerQueryResult, error) {
	var pages []CustomerQueryResult

	for startPos := 1; startPos < maxStartPosition; startPos += customerPageSize {
		query := fmt.Sprintf("select * from Customer MAXRESULTS %d STARTPOSITION %d", customerPageSize, startPos)

		var page CustomerQueryResult
		if err := c.getJSON(ctx, accessToken, c.queryURL(realmID, query), &page); err != nil {
			return CustomerQueryResult{}, fmt.Errorf("qbo: customer query page at %d: %w", startPos, err)
		}

		if len(page.QueryResponse.Customer) > 0 {
			pages = append(pages, page)
		}
		if len(page.QueryResponse.Customer) < customerPageSize {
			break
		}
	}

	return CombinePages(pages), nil
}

// CombinePages merges customer-query pages into one logical result:
// customer arrays concatenated, maxResults summed.
func CombinePages(pages []CustomerQueryResult) CustomerQueryResult {
	if len(pages) == 0 {
		return CustomerQueryResult{}
	}
	if len(pages) == 1 {
		return pages[0]
	}

	merged := pages[0]
	for _, page := range pages[1:] {
		merged.QueryResponse.Customer = append(merged.QueryResponse.Customer, page.QueryResponse.Customer...)
		merged.QueryResponse.MaxResults += page.QueryResponse.MaxResults
	}
	return merged
}

// ─── ITEMS ───────────────────────────────────────────────────────────────────

// Items fetches the selectable product lines. Sub-items are dropped; the
// sales report only summarises top-level items.
func (c *Client) Items(ctx context.Context, accessToken, realmID string) ([]Item, error) {
	var result itemQueryResult
	if err := c.getJSON(ctx, accessToken, c.queryURL(realmID, "select * from Item"), &result); err != nil {
		return nil, fmt.Errorf("qbo: item query: %w", err)
	}

	items := make([]Item, 0, len(result.QueryResponse.Item))
	for _, item := range result.QueryResponse.Item {
		if item.SubItem {
			continue
		}
		items = append(items, Item{ID: item.ID, Name: item.Name})
	}
	return items, nil
}

// ─── COMPANY INFO ────────────────────────────────────────────────────────────

// CompanyInfo fetches the donee company record. The legal name and address
// are preferred over the trading ones when both exist.
func (c *Client) CompanyInfo(ctx context.Context, accessToken, realmID string) (CompanyInfo, error) {
	var result companyInfoQueryResult
	if err := c.getJSON(ctx, accessToken, c.queryURL(realmID, "select * from CompanyInfo"), &result); err != nil {
		return CompanyInfo{}, fmt.Errorf("qbo: company info query: %w", err)
	}
	if len(result.QueryResponse.CompanyInfo) == 0 {
		return CompanyInfo{}, fmt.Errorf("qbo: no company info found")
	}

	info := result.QueryResponse.CompanyInfo[0]
	name := info.LegalName
	if name == "" {
		name = info.CompanyName
	}

	address := "No address on file"
	switch {
	case info.LegalAddr != nil:
		address = formatInfoAddress(info.LegalAddr)
	case info.CompanyAddr != nil:
		address = formatInfoAddress(info.CompanyAddr)
	}

	return CompanyInfo{CompanyName: name, CompanyAddress: address, Country: info.Country}, nil
}

// formatInfoAddress mirrors the donation package's billing-address rules for
// the company address. Kept local so qbo does not import donation.
func formatInfoAddress(a *Address) string {
	var b strings.Builder
	b.WriteString(a.Line1)
	for _, part := range []string{a.Line2, a.Line3} {
		if part != "" {
			b.WriteString(" " + part)
		}
	}
	if a.City != "" || a.PostalCode != "" || a.CountrySubDivisionCode != "" {
		b.WriteString(",")
		for _, part := range []string{a.City, a.PostalCode, a.CountrySubDivisionCode} {
			if part != "" {
				b.WriteString(" " + part)
			}
		}
	}
	return b.String()
}

// ─── TOKEN REFRESH ───────────────────────────────────────────────────────────

// TokenSet is the result of an OAuth refresh.
type TokenSet struct {
	TokenType             string `json:"token_type"`
	ExpiresIn             int    `json:"expires_in"`
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int    `json:"x_refresh_token_expires_in"`
}

// RefreshToken exchanges a refresh token for a fresh access token using the
// app's client credentials.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.oauthBase+"/tokens/bearer", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenSet{}, fmt.Errorf("qbo: build refresh request: %w", err)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenSet{}, fmt.Errorf("qbo: refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return TokenSet{}, fmt.Errorf("qbo: read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TokenSet{}, fmt.Errorf("qbo: token refresh failed with status %d: %.200s", resp.StatusCode, string(body))
	}

	var tokens TokenSet
	if err := json.Unmarshal(body, &tokens); err != nil {
		return TokenSet{}, fmt.Errorf("qbo: unmarshal refresh response: %w", err)
	}
	return tokens, nil
}

// ─── HTTP PLUMBING ───────────────────────────────────────────────────────────

func (c *Client) queryURL(realmID, query string) string {
	return fmt.Sprintf("%s/company/%s/query?query=%s",
		c.apiBase, url.PathEscape(realmID), url.QueryEscape(query))
}

// getJSON issues an authorised GET and unmarshals the response. A Fault body
// takes precedence over everything else: QBO reports errors both with and
// without non-2xx statuses.
func (c *Client) getJSON(ctx context.Context, accessToken, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var fault faultBody
	if err := json.Unmarshal(body, &fault); err == nil && fault.Fault != nil {
		return fault.toError()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %.200s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
