package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gameroom/internal/vars"
)

func lookupServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPublicIP(t *testing.T) {
	srv := lookupServer(t, http.StatusOK, `{"ip": "203.0.113.10"}`)

	ip, err := New(Config{URL: srv.URL, Timeout: time.Second}).PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.10", ip)
}

func TestPublicIPStatic(t *testing.T) {
	ip, err := New(Config{URL: "http://127.0.0.1:1", StaticIP: "198.51.100.7"}).PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", ip)
}

func TestPublicIPFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "missing field", status: http.StatusOK, body: `{"address": "203.0.113.10"}`},
		{name: "malformed payload", status: http.StatusOK, body: `{"ip": `},
		{name: "not an ip", status: http.StatusOK, body: `{"ip": "localhost"}`},
		{name: "wrong type", status: http.StatusOK, body: `{"ip": 42}`},
		{name: "server error", status: http.StatusBadGateway, body: `{"ip": "203.0.113.10"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := lookupServer(t, tt.status, tt.body)

			ip, err := New(Config{URL: srv.URL, Timeout: time.Second}).PublicIP(context.Background())
			assert.Error(t, err)
			assert.Empty(t, ip)
		})
	}
}

func TestPublicIPConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Config{URL: url, Timeout: time.Second}).PublicIP(context.Background())
	assert.Error(t, err)
}

func TestPublicIPSendsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"ip": "203.0.113.10"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := New(Config{URL: srv.URL, Timeout: time.Second}).PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, vars.UserAgent(), ua)
}
