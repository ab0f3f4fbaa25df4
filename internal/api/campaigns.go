package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ─── DTOs ─────────────────────────────────────────────────────────────────────

type campaignSummaryDTO struct {
	ID           uuid.UUID  `json:"id"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	CreatedAt    time.Time  `json:"createdAt"`
	DispatchedAt *time.Time `json:"dispatchedAt"`
	ReceiptCount int64      `json:"receiptCount"`
	SentCount    int64      `json:"sentCount"`
}

type receiptDTO struct {
	DonorID       string `json:"donorId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Total         string `json:"total"`
	ReceiptNumber int64  `json:"receiptNumber"`
	EmailStatus   string `json:"emailStatus"`
}

type campaignDetailDTO struct {
	ID           uuid.UUID    `json:"id"`
	StartDate    time.Time    `json:"startDate"`
	EndDate      time.Time    `json:"endDate"`
	CreatedAt    time.Time    `json:"createdAt"`
	DispatchedAt *time.Time   `json:"dispatchedAt"`
	Receipts     []receiptDTO `json:"receipts"`
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

// ─── GET /api/campaign ────────────────────────────────────────────────────────

// handleListCampaigns returns the account's past campaigns with receipt and
// sent counts, newest first.
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	rows, err := s.q.ListCampaignsByAccount(r.Context(), account.ID)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}

	dto := make([]campaignSummaryDTO, len(rows))
	for i, row := range rows {
		dto[i] = campaignSummaryDTO{
			ID:           row.Campaign.ID,
			StartDate:    row.Campaign.StartDate,
			EndDate:      row.Campaign.EndDate,
			CreatedAt:    row.Campaign.CreatedAt,
			DispatchedAt: nullTimePtr(row.Campaign.DispatchedAt),
			ReceiptCount: row.ReceiptCount,
			SentCount:    row.SentCount,
		}
	}
	respond(w, http.StatusOK, dto)
}

// ─── GET /api/campaign/{campaignID} ──────────────────────────────────────────

// handleGetCampaign returns one campaign with its per-recipient receipts and
// delivery states. 404s hide other accounts' campaigns.
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	campaignID, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	campaign, err := s.q.GetCampaignByID(r.Context(), campaignID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && campaign.AccountID != account.ID) {
		respondErr(w, http.StatusNotFound, "campaign not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}

	receipts, err := s.q.ListReceiptsByCampaign(r.Context(), campaignID)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}

	dto := campaignDetailDTO{
		ID:           campaign.ID,
		StartDate:    campaign.StartDate,
		EndDate:      campaign.EndDate,
		CreatedAt:    campaign.CreatedAt,
		DispatchedAt: nullTimePtr(campaign.DispatchedAt),
		Receipts:     make([]receiptDTO, len(receipts)),
	}
	for i, receipt := range receipts {
		dto.Receipts[i] = receiptDTO{
			DonorID:       receipt.DonorID,
			Name:          receipt.Name,
			Email:         receipt.Email,
			Total:         receipt.Total.StringFixed(2),
			ReceiptNumber: receipt.ReceiptNumber,
			EmailStatus:   string(receipt.EmailStatus),
		}
	}
	respond(w, http.StatusOK, dto)
}
