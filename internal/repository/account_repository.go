package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nova-ops/account-sweeper/internal/models"
)

// SampleResult is the outcome of loading the eligible-account sample.
type SampleResult struct {
	TotalEligible int
	Accounts      []models.Account
	Truncated     bool
	Skipped       int
}

// AccountRepository provides database access for team account records.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// LoadSample returns the accounts eligible for a status check: non-banned
// records created within the trailing windowDays, newest first, capped at
// limit. TotalEligible counts the full matching set before the cap.
func (r *AccountRepository) LoadSample(ctx context.Context, windowDays, limit int) (SampleResult, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -windowDays)

	const countQuery = `SELECT COUNT(*) FROM team_accounts WHERE created_at >= $1 AND is_banned = FALSE`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, threshold); err != nil {
		return SampleResult{}, fmt.Errorf("count eligible accounts: %w", err)
	}

	const listQuery = `SELECT id, email, access_token, refresh_token, external_account_id, device_id, expire_at, is_open, is_banned, ban_processed, created_at, updated_at FROM team_accounts WHERE created_at >= $1 AND is_banned = FALSE ORDER BY created_at DESC LIMIT $2`
	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, listQuery, threshold, limit); err != nil {
		return SampleResult{}, fmt.Errorf("load account sample: %w", err)
	}

	result := SampleResult{
		TotalEligible: total,
		Accounts:      accounts,
		Truncated:     total > len(accounts),
	}
	if result.Truncated {
		result.Skipped = total - len(accounts)
	}

	return result, nil
}

// UpdateTokens overwrites the stored credential pair after a successful
// refresh. A pair without an access token is a no-op. A rotation that yielded
// an empty refresh token clears the stored one to NULL.
func (r *AccountRepository) UpdateTokens(ctx context.Context, id string, pair models.TokenPair) error {
	if pair.AccessToken == "" {
		return nil
	}

	refreshToken := sql.NullString{}
	if trimmed := strings.TrimSpace(pair.RefreshToken); trimmed != "" {
		refreshToken = sql.NullString{String: trimmed, Valid: true}
	}

	const query = `UPDATE team_accounts SET access_token = $2, refresh_token = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, pair.AccessToken, refreshToken, time.Now().UTC()); err != nil {
		return fmt.Errorf("update account tokens: %w", err)
	}
	return nil
}

// MarkBanned durably flags the account as banned: closed for use and pending
// downstream ban processing. Safe to call repeatedly for the same id.
func (r *AccountRepository) MarkBanned(ctx context.Context, id string) error {
	const query = `UPDATE team_accounts SET is_banned = TRUE, is_open = FALSE, ban_processed = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark account banned: %w", err)
	}
	return nil
}
