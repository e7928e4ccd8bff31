package models

import (
	"database/sql"
	"time"
)

// Account is a managed team account credential record.
type Account struct {
	ID                string         `db:"id" json:"id"`
	Email             string         `db:"email" json:"email"`
	AccessToken       string         `db:"access_token" json:"-"`
	RefreshToken      sql.NullString `db:"refresh_token" json:"-"`
	ExternalAccountID string         `db:"external_account_id" json:"externalAccountId"`
	DeviceID          string         `db:"device_id" json:"deviceId"`
	ExpireAt          sql.NullString `db:"expire_at" json:"expireAt"`
	IsOpen            bool           `db:"is_open" json:"isOpen"`
	IsBanned          bool           `db:"is_banned" json:"isBanned"`
	BanProcessed      bool           `db:"ban_processed" json:"banProcessed"`
	CreatedAt         time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updatedAt"`
}

// RefreshTokenValue returns the stored refresh token, trimmed of NULL handling.
func (a Account) RefreshTokenValue() string {
	if a.RefreshToken.Valid {
		return a.RefreshToken.String
	}
	return ""
}

// ExpireAtValue returns the raw expiry string or "" when unknown.
func (a Account) ExpireAtValue() string {
	if a.ExpireAt.Valid {
		return a.ExpireAt.String
	}
	return ""
}

// TokenPair holds an access token and the refresh token that produced it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
