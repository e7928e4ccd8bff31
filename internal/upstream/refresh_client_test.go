package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/nova-ops/account-sweeper/pkg/errors"
)

func TestRefreshEmptyTokenRejected(t *testing.T) {
	client := NewRefreshClient("http://localhost", time.Second)

	_, err := client.Refresh(context.Background(), "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRefreshInvalidInput)
}

func TestRefreshSuccessWithRotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostFormValue("grant_type"))
		assert.Equal(t, oauthClientID, r.PostFormValue("client_id"))
		assert.Equal(t, "old-refresh", r.PostFormValue("refresh_token"))
		assert.Equal(t, oauthScope, r.PostFormValue("scope"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh"}`))
	}))
	defer srv.Close()

	client := NewRefreshClient(srv.URL, time.Second)
	pair, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", pair.AccessToken)
	assert.Equal(t, "new-refresh", pair.RefreshToken)
}

func TestRefreshEchoesInputTokenWithoutRotation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"new-access"}`))
	}))
	defer srv.Close()

	client := NewRefreshClient(srv.URL, time.Second)
	pair, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", pair.RefreshToken)
}

func TestRefreshUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
	}))
	defer srv.Close()

	client := NewRefreshClient(srv.URL, time.Second)
	_, err := client.Refresh(context.Background(), "revoked")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRefreshRejected)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "refresh token revoked", appErr.Message)
}

func TestRefreshMissingAccessTokenIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer srv.Close()

	client := NewRefreshClient(srv.URL, time.Second)
	_, err := client.Refresh(context.Background(), "valid")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRefreshRejected)
}

func TestRefreshTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewRefreshClient(srv.URL, time.Second)
	_, err := client.Refresh(context.Background(), "valid")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrRefreshUnreachable)
}
