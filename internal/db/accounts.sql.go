package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const getAccountBySessionToken = `
SELECT id, email, session_token, access_token, refresh_token, realm_id,
       expires_at, refresh_token_expires_at, created_at, updated_at
FROM accounts
WHERE session_token = $1
`

func (q *Queries) GetAccountBySessionToken(ctx context.Context, sessionToken string) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountBySessionToken, sessionToken)
	return scanAccount(row)
}

const getAccountByID = `
SELECT id, email, session_token, access_token, refresh_token, realm_id,
       expires_at, refresh_token_expires_at, created_at, updated_at
FROM accounts
WHERE id = $1
`

func (q *Queries) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	row := q.db.QueryRowContext(ctx, getAccountByID, id)
	return scanAccount(row)
}

const updateAccountTokens = `
UPDATE accounts
SET access_token             = $2,
    refresh_token            = $3,
    expires_at               = $4,
    refresh_token_expires_at = $5,
    updated_at               = now()
WHERE id = $1
RETURNING id, email, session_token, access_token, refresh_token, realm_id,
          expires_at, refresh_token_expires_at, created_at, updated_at
`

type UpdateAccountTokensParams struct {
	ID                    uuid.UUID
	AccessToken           sql.NullString
	RefreshToken          sql.NullString
	ExpiresAt             sql.NullTime
	RefreshTokenExpiresAt sql.NullTime
}

func (q *Queries) UpdateAccountTokens(ctx context.Context, arg UpdateAccountTokensParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, updateAccountTokens,
		arg.ID, arg.AccessToken, arg.RefreshToken, arg.ExpiresAt, arg.RefreshTokenExpiresAt)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Email, &a.SessionToken, &a.AccessToken, &a.RefreshToken,
		&a.RealmID, &a.ExpiresAt, &a.RefreshTokenExpiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

const getUserData = `
SELECT account_id, items, start_date, end_date, updated_at
FROM user_datas
WHERE account_id = $1
`

func (q *Queries) GetUserData(ctx context.Context, accountID uuid.UUID) (UserData, error) {
	var u UserData
	err := q.db.QueryRowContext(ctx, getUserData, accountID).Scan(
		&u.AccountID, &u.Items, &u.StartDate, &u.EndDate, &u.UpdatedAt,
	)
	return u, err
}

const getDoneeInfo = `
SELECT account_id, company_name, company_address, country,
       registration_number, signatory_name, signature, small_logo
FROM donee_infos
WHERE account_id = $1
`

func (q *Queries) GetDoneeInfo(ctx context.Context, accountID uuid.UUID) (DoneeInfo, error) {
	var d DoneeInfo
	err := q.db.QueryRowContext(ctx, getDoneeInfo, accountID).Scan(
		&d.AccountID, &d.CompanyName, &d.CompanyAddress, &d.Country,
		&d.RegistrationNumber, &d.SignatoryName, &d.Signature, &d.SmallLogo,
	)
	return d, err
}

const getSubscriptionByAccount = `
SELECT id, account_id, status, cancel_at_period_end, current_period_end, created_at, updated_at
FROM subscriptions
WHERE account_id = $1
`

func (q *Queries) GetSubscriptionByAccount(ctx context.Context, accountID uuid.UUID) (Subscription, error) {
	var s Subscription
	err := q.db.QueryRowContext(ctx, getSubscriptionByAccount, accountID).Scan(
		&s.ID, &s.AccountID, &s.Status, &s.CancelAtPeriodEnd,
		&s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

const upsertSubscription = `
INSERT INTO subscriptions (id, account_id, status, cancel_at_period_end, current_period_end)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (account_id) DO UPDATE
SET id                   = EXCLUDED.id,
    status               = EXCLUDED.status,
    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
    current_period_end   = EXCLUDED.current_period_end,
    updated_at           = now()
RETURNING id, account_id, status, cancel_at_period_end, current_period_end, created_at, updated_at
`

type UpsertSubscriptionParams struct {
	ID                string
	AccountID         uuid.UUID
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
}

func (q *Queries) UpsertSubscription(ctx context.Context, arg UpsertSubscriptionParams) (Subscription, error) {
	var s Subscription
	err := q.db.QueryRowContext(ctx, upsertSubscription,
		arg.ID, arg.AccountID, arg.Status, arg.CancelAtPeriodEnd, arg.CurrentPeriodEnd,
	).Scan(
		&s.ID, &s.AccountID, &s.Status, &s.CancelAtPeriodEnd,
		&s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}
