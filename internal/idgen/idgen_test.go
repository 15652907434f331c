package idgen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gameroom/internal/apierr"
	"github.com/woozymasta/gameroom/internal/storage"
)

func newRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "gameroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestNextStartsAtOne(t *testing.T) {
	gen := New(newRepo(t))

	id, err := gen.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", id)
}

func TestNextIsUniqueUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	gen := New(newRepo(t))

	const n = 20
	ids := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := gen.Next(ctx)
			ids <- id
			errs <- err
		}()
	}

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
		seen[<-ids] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestNextBackendUnavailable(t *testing.T) {
	repo, err := storage.New(filepath.Join(t.TempDir(), "gameroom.db"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = New(repo).Next(context.Background())
	assert.True(t, apierr.HasKind(err, apierr.BackendUnavailable))
}
