package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CachesUntilRenewal(t *testing.T) {
	var calls int32
	m := NewManager(func(ctx context.Context) (string, time.Duration, error) {
		n := atomic.AddInt32(&calls, 1)
		return "token-" + string(rune('0'+n)), 100 * time.Second, nil
	})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	now = now.Add(79 * time.Second)
	tok, _ = m.Token(context.Background())
	assert.Equal(t, "token-1", tok)

	now = now.Add(2 * time.Second)
	tok, _ = m.Token(context.Background())
	assert.Equal(t, "token-2", tok)

	m.Invalidate()
	tok, _ = m.Token(context.Background())
	assert.Equal(t, "token-3", tok)
}

func TestManager_FetchError(t *testing.T) {
	m := NewManager(func(ctx context.Context) (string, time.Duration, error) {
		return "", 0, errors.New("offline")
	})
	_, err := m.Token(context.Background())
	assert.ErrorContains(t, err, "offline")
}

func TestRenewAfter(t *testing.T) {
	assert.Equal(t, 5*time.Minute, renewAfter(0))
	assert.Equal(t, 8*time.Second, renewAfter(10*time.Second))
}

func TestNewOAuth2Fetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "my-client", r.Form.Get("client_id"))
		assert.Equal(t, "orders:read", r.Form.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "mock-jwt-xyz", "expires_in": 3600, "token_type": "Bearer"}`))
	}))
	defer server.Close()

	fetcher := NewOAuth2Fetcher(Config{
		TokenURL:     server.URL,
		ClientID:     "my-client",
		ClientSecret: "my-secret",
		Scope:        "orders:read",
	}, nil)

	token, ttl, err := fetcher(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock-jwt-xyz", token)
	assert.Equal(t, time.Hour, ttl)
}

func TestNewOAuth2Fetcher_Errors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer failing.Close()

	_, _, err := NewOAuth2Fetcher(Config{TokenURL: failing.URL}, nil)(context.Background())
	assert.ErrorContains(t, err, "401")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in": 10}`))
	}))
	defer empty.Close()

	_, _, err = NewOAuth2Fetcher(Config{TokenURL: empty.URL}, nil)(context.Background())
	assert.ErrorContains(t, err, "access_token veio vazio")
}
