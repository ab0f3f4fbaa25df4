package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/babyccino/donationreceipt-backend/internal/donation"
	"github.com/babyccino/donationreceipt-backend/internal/qbo"
)

// ─── DTOs ─────────────────────────────────────────────────────────────────────

type itemDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type donationItemDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Total string `json:"total"`
}

type donationDTO struct {
	DonorID string            `json:"donorId"`
	Name    string            `json:"name"`
	Email   *string           `json:"email"`
	Address string            `json:"address"`
	Total   string            `json:"total"`
	Items   []donationItemDTO `json:"items"`
}

type donationsResponse struct {
	Donations []donationDTO `json:"donations"`
	Checksum  string        `json:"checksum"`
}

func toDonationDTO(d donation.Donation) donationDTO {
	items := make([]donationItemDTO, len(d.Items))
	for i, item := range d.Items {
		items[i] = donationItemDTO{ID: item.ID, Name: item.Name, Total: item.Total.StringFixed(2)}
	}
	return donationDTO{
		DonorID: d.DonorID,
		Name:    d.Name,
		Email:   d.Email,
		Address: d.Address,
		Total:   d.Total.StringFixed(2),
		Items:   items,
	}
}

// ─── GET /api/items ───────────────────────────────────────────────────────────

// handleGetItems returns the account's selectable QBO product lines. The
// frontend shows these as checkboxes for the report configuration.
func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	account, err := s.freshAccount(r)
	if err != nil {
		s.respondConnectionErr(w, r, err)
		return
	}

	items, err := s.qboClient.Items(r.Context(), account.AccessToken.String, account.RealmID.String)
	if err != nil {
		s.respondQBOErr(w, r, err)
		return
	}

	dto := make([]itemDTO, len(items))
	for i, item := range items {
		dto[i] = itemDTO{ID: item.ID, Name: item.Name}
	}
	respond(w, http.StatusOK, dto)
}

// ─── GET /api/donations ───────────────────────────────────────────────────────

// handleGetDonations computes the donation set for the account's configured
// date range and item selection, returning it together with the checksum the
// frontend must echo back when it asks to send.
func (s *Server) handleGetDonations(w http.ResponseWriter, r *http.Request) {
	account, err := s.freshAccount(r)
	if err != nil {
		s.respondConnectionErr(w, r, err)
		return
	}

	userData, err := s.q.GetUserData(r.Context(), account.ID)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "no report configuration saved")
		return
	}
	if !userData.Items.Valid || userData.Items.String == "" {
		respondErr(w, http.StatusBadRequest, "no items selected")
		return
	}

	donations, err := s.donationService.GetDonations(r.Context(),
		account.AccessToken.String, account.RealmID.String,
		qbo.DateRange{Start: userData.StartDate, End: userData.EndDate},
		strings.Split(userData.Items.String, ","),
	)
	if err != nil {
		s.respondQBOErr(w, r, err)
		return
	}

	dto := make([]donationDTO, len(donations))
	for i, d := range donations {
		dto[i] = toDonationDTO(d)
	}
	respond(w, http.StatusOK, donationsResponse{
		Donations: dto,
		Checksum:  donation.Checksum(donations),
	})
}

// ─── SHARED ERROR MAPPING ─────────────────────────────────────────────────────

// respondConnectionErr maps token-freshness failures: a missing connection is
// the caller's problem, a failed refresh round-trip is ours.
func (s *Server) respondConnectionErr(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errNotConnected) {
		respondErr(w, http.StatusUnauthorized, "account is not connected to QuickBooks")
		return
	}
	s.respondInternalErr(w, r, err)
}

// respondQBOErr surfaces remote accounting-API failures as a bad gateway so
// callers can distinguish them from bugs in this service.
func (s *Server) respondQBOErr(w http.ResponseWriter, r *http.Request, err error) {
	var fault *qbo.FaultError
	if errors.As(err, &fault) {
		s.logger.Warn("QBO fault", "error", err, logField(r))
		respondErr(w, http.StatusBadGateway, "QuickBooks rejected the request")
		return
	}
	s.respondInternalErr(w, r, err)
}
