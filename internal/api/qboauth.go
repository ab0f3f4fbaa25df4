package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/babyccino/donationreceipt-backend/internal/db"
)

// errNotConnected means the account has no QBO connection (or the refresh
// token itself has lapsed) and must re-run the OAuth flow in the frontend.
var errNotConnected = errors.New("api: account is not connected to QuickBooks")

// tokenExpirySlack refreshes slightly early so a token can't lapse between
// the check and the QBO calls it gates.
const tokenExpirySlack = 2 * time.Minute

// freshAccount returns the account with a usable access token, refreshing
// and persisting new tokens when the current one is expired or nearly so.
func (s *Server) freshAccount(r *http.Request) (db.Account, error) {
	account := accountFrom(r)

	if !account.RefreshToken.Valid || !account.RealmID.Valid {
		return db.Account{}, errNotConnected
	}
	if account.RefreshTokenExpiresAt.Valid && account.RefreshTokenExpiresAt.Time.Before(time.Now()) {
		return db.Account{}, errNotConnected
	}

	if account.AccessToken.Valid && account.ExpiresAt.Valid &&
		time.Now().Add(tokenExpirySlack).Before(account.ExpiresAt.Time) {
		return account, nil
	}

	tokens, err := s.qboClient.RefreshToken(r.Context(), account.RefreshToken.String)
	if err != nil {
		return db.Account{}, fmt.Errorf("api: refresh QBO tokens: %w", err)
	}

	now := time.Now()
	updated, err := s.q.UpdateAccountTokens(r.Context(), db.UpdateAccountTokensParams{
		ID:          account.ID,
		AccessToken: sql.NullString{String: tokens.AccessToken, Valid: true},
		RefreshToken: sql.NullString{
			String: tokens.RefreshToken,
			Valid:  tokens.RefreshToken != "",
		},
		ExpiresAt: sql.NullTime{
			Time:  now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
			Valid: true,
		},
		RefreshTokenExpiresAt: sql.NullTime{
			Time:  now.Add(time.Duration(tokens.RefreshTokenExpiresIn) * time.Second),
			Valid: tokens.RefreshTokenExpiresIn > 0,
		},
	})
	if err != nil {
		return db.Account{}, fmt.Errorf("api: persist refreshed tokens: %w", err)
	}

	s.logger.Info("refreshed QBO tokens", "account_id", account.ID, logField(r))
	return updated, nil
}
