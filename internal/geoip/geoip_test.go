package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDBDownloadsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("mmdb"))
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mmdb", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureDBKeepsFreshFile(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	require.NoError(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))
	assert.Zero(t, hits)
}

func TestEnsureDBBadStatusLeavesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "country.mmdb")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	assert.Error(t, EnsureDB(context.Background(), path, srv.URL, time.Hour))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.Empty(t, p.GetCountryCode("203.0.113.10"))
	assert.NoError(t, p.Close())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.mmdb"))
	assert.Error(t, err)
}
