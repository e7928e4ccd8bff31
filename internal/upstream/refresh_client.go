package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nova-ops/account-sweeper/internal/models"
	appErrors "github.com/nova-ops/account-sweeper/pkg/errors"
)

const (
	// oauthClientID is the fixed application identifier registered with the
	// upstream identity provider.
	oauthClientID = "app_EMoamEEZ73f0CkXaXp7hrann"
	oauthScope    = "openid profile email"
)

// RefreshClient exchanges a long-lived refresh token for a fresh access token.
type RefreshClient struct {
	tokenURL string
	client   *http.Client
}

// NewRefreshClient constructs a refresh client against the given token
// endpoint. A non-positive timeout falls back to 60 seconds.
func NewRefreshClient(tokenURL string, timeout time.Duration) *RefreshClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RefreshClient{
		tokenURL: tokenURL,
		client:   &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ErrorField       string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh performs a refresh_token grant. On success the returned pair carries
// the new access token and the rotated refresh token; when the upstream does
// not rotate, the input refresh token is echoed back.
func (c *RefreshClient) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	normalized := strings.TrimSpace(refreshToken)
	if normalized == "" {
		return models.TokenPair{}, appErrors.ErrRefreshInvalidInput
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {oauthClientID},
		"refresh_token": {normalized},
		"scope":         {oauthScope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrRefreshUnreachable.Code, appErrors.ErrRefreshUnreachable.Status, "build token refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrRefreshUnreachable.Code, appErrors.ErrRefreshUnreachable.Status, "token refresh request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrRefreshUnreachable.Code, appErrors.ErrRefreshUnreachable.Status, "read token refresh response")
	}

	var parsed tokenResponse
	_ = json.Unmarshal(body, &parsed)

	if resp.StatusCode != http.StatusOK || parsed.AccessToken == "" {
		message := upstreamErrorMessage(parsed, body)
		return models.TokenPair{}, appErrors.WithMessage(appErrors.ErrRefreshRejected, message)
	}

	pair := models.TokenPair{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = normalized
	}
	return pair, nil
}

func upstreamErrorMessage(parsed tokenResponse, body []byte) string {
	if parsed.ErrorDescription != "" {
		return parsed.ErrorDescription
	}
	if parsed.ErrorField != "" {
		return parsed.ErrorField
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return fmt.Sprintf("token refresh failed: %s", truncate(trimmed, 200))
	}
	return "token refresh failed: no access token in response"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
