package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/babyccino/donationreceipt-backend/internal/dispatch"
	"github.com/babyccino/donationreceipt-backend/internal/store"
)

// ─── POST /api/email ──────────────────────────────────────────────────────────

type sendCampaignRequest struct {
	EmailBody    string   `json:"emailBody"`
	RecipientIDs []string `json:"recipientIds"`
	Checksum     string   `json:"checksum"`
}

type sendCampaignResponse struct {
	CampaignID uuid.UUID `json:"campaignId"`
}

// handleSendCampaign validates a send request and creates the campaign. The
// heavy precondition chain lives in the dispatcher; this handler only
// decodes, ensures fresh QBO tokens, and maps sentinel errors to status
// codes. A 200 means the campaign exists and sending has started — it does
// not promise delivery, which the campaign detail endpoint reports.
func (s *Server) handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	var req sendCampaignRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.EmailBody) == "" {
		respondErr(w, http.StatusBadRequest, "emailBody is required")
		return
	}
	if req.Checksum == "" {
		respondErr(w, http.StatusBadRequest, "checksum is required")
		return
	}

	account, err := s.freshAccount(r)
	if err != nil {
		s.respondConnectionErr(w, r, err)
		return
	}

	campaignID, err := s.dispatcher.Dispatch(r.Context(), dispatch.Params{
		Account:      account,
		EmailBody:    req.EmailBody,
		RecipientIDs: req.RecipientIDs,
		Checksum:     req.Checksum,
	})

	switch {
	case err == nil:
		respond(w, http.StatusOK, sendCampaignResponse{CampaignID: campaignID})

	case errors.Is(err, dispatch.ErrNotSubscribed):
		respondErr(w, http.StatusUnauthorized, "an active subscription is required to send receipts")

	case errors.Is(err, store.ErrRateLimited):
		respondErr(w, http.StatusTooManyRequests, "campaign limit reached, try again later")

	case errors.Is(err, dispatch.ErrStaleData):
		// The donation data moved under the user. The frontend refetches
		// /api/donations and asks for confirmation again.
		respondErr(w, http.StatusConflict, "donation data has changed, refresh and try again")

	case errors.Is(err, dispatch.ErrNoRecipients),
		errors.Is(err, dispatch.ErrDataMissing),
		errors.Is(err, dispatch.ErrRecipientNoEmail):
		respondErr(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, dispatch.ErrUnknownRecipient):
		// The checksum matched but a recipient id is absent: the frontend and
		// backend disagree about the same data. That is our bug, not theirs.
		s.respondInternalErr(w, r, err)

	default:
		s.respondQBOErr(w, r, err)
	}
}
