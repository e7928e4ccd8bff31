package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nova-ops/account-sweeper/internal/models"
	appErrors "github.com/nova-ops/account-sweeper/pkg/errors"
)

// deactivatedSignal is the marker the remote service embeds in error payloads
// when an account has been permanently disabled.
const deactivatedSignal = "account_deactivated"

// ProbeClient validates account credentials with a minimal read-only request.
type ProbeClient struct {
	baseURL string
	client  *http.Client
}

// NewProbeClient constructs a probe client against the remote service.
func NewProbeClient(baseURL string, timeout time.Duration) *ProbeClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ProbeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type probeErrorBody struct {
	Detail string `json:"detail"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Probe issues a single-user listing request with the account's current
// credentials. A nil return means the credentials are usable. Failures are
// classified: a deactivation signal anywhere in the payload maps to
// ErrProbeDeactivated regardless of HTTP status, a 401 maps to
// ErrProbeUnauthorized, and everything else to ErrProbeFailed.
func (c *ProbeClient) Probe(ctx context.Context, account models.Account) error {
	endpoint := fmt.Sprintf("%s/api/accounts/%s/users?offset=0&limit=1&query=", c.baseURL, account.ExternalAccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrProbeFailed.Code, appErrors.ErrProbeFailed.Status, "build probe request")
	}
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)
	if account.ExternalAccountID != "" {
		req.Header.Set("Chatgpt-Account-Id", account.ExternalAccountID)
	}
	if account.DeviceID != "" {
		req.Header.Set("Oai-Device-Id", account.DeviceID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrProbeFailed.Code, appErrors.ErrProbeFailed.Status, "probe request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	message := probeMessage(body, resp.StatusCode)

	if strings.Contains(message, deactivatedSignal) || strings.Contains(string(body), deactivatedSignal) {
		return appErrors.WithStatus(appErrors.ErrProbeDeactivated, resp.StatusCode, message)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return appErrors.WithStatus(appErrors.ErrProbeUnauthorized, resp.StatusCode, message)
	}
	return appErrors.WithStatus(appErrors.ErrProbeFailed, resp.StatusCode, message)
}

func probeMessage(body []byte, status int) string {
	var parsed probeErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return truncate(trimmed, 200)
	}
	return fmt.Sprintf("probe failed with status %d", status)
}
