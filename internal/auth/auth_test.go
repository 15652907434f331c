package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/gameroom/internal/apierr"
)

type fakeStore struct {
	err       error
	secret    string
	mu        sync.Mutex
	fetches   int
	connected bool
}

func (f *fakeStore) IsConnected(context.Context) bool {
	return f.connected
}

func (f *fakeStore) AuthKey(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.secret, f.err
}

func TestAuthorizeFetchesSecretOnce(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{secret: "s3cret", connected: true}
	gate := New(store)

	require.NoError(t, gate.Authorize(ctx, "s3cret"))
	assert.True(t, apierr.HasKind(gate.Authorize(ctx, "wrong"), apierr.Unauthorized))
	assert.Equal(t, 1, store.fetches)
}

func TestAuthorizeEmptyKey(t *testing.T) {
	gate := New(&fakeStore{secret: "s3cret", connected: true})

	err := gate.Authorize(context.Background(), "")
	assert.True(t, apierr.HasKind(err, apierr.Unauthorized))
}

func TestAuthorizeBackendUnavailable(t *testing.T) {
	store := &fakeStore{secret: "s3cret"}
	gate := New(store)

	err := gate.Authorize(context.Background(), "s3cret")
	assert.True(t, apierr.HasKind(err, apierr.BackendUnavailable))
	assert.Zero(t, store.fetches)
}

func TestAuthorizeLookupFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{err: errors.New("no such table: settings"), connected: true}
	gate := New(store)

	err := gate.Authorize(ctx, "s3cret")
	assert.True(t, apierr.HasKind(err, apierr.StorageFault))

	store.err = nil
	store.secret = "s3cret"
	require.NoError(t, gate.Authorize(ctx, "s3cret"))
	assert.Equal(t, 2, store.fetches)
}

func TestAuthorizeCachedSecretSurvivesDisconnect(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{secret: "s3cret", connected: true}
	gate := New(store)

	require.NoError(t, gate.Authorize(ctx, "s3cret"))
	store.connected = false
	require.NoError(t, gate.Authorize(ctx, "s3cret"))
}

func TestAuthorizeConcurrentFirstCalls(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{secret: "s3cret", connected: true}
	gate := New(store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Authorize(ctx, "s3cret")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.fetches)
}
