// Package auth implements the shared-key gate that guards every lifecycle operation.
package auth

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/rs/zerolog"
	"github.com/woozymasta/gameroom/internal/apierr"
)

// SecretStore is the storage session the gate reads the shared secret from.
type SecretStore interface {
	IsConnected(ctx context.Context) bool
	AuthKey(ctx context.Context) (string, error)
}

// Gate validates caller-supplied keys against a single secret that is loaded
// from the store on first use and cached for the process lifetime.
type Gate struct {
	store SecretStore

	// mu guards secret and loaded; held across the initial fetch so that
	// concurrent first callers do not fetch twice.
	mu     sync.Mutex
	secret string
	loaded bool
}

// New returns a gate backed by store.
func New(store SecretStore) *Gate {
	return &Gate{store: store}
}

// Authorize returns nil if key matches the configured secret.
// A failed secret lookup is not cached; the next call tries again.
func (g *Gate) Authorize(ctx context.Context, key string) error {
	secret, err := g.load(ctx)
	if err != nil {
		return err
	}

	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
		zerolog.Ctx(ctx).Warn().Msg("Unauthorized access attempt")
		return apierr.NewUnauthorized()
	}

	return nil
}

func (g *Gate) load(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		return g.secret, nil
	}

	if !g.store.IsConnected(ctx) {
		return "", apierr.NewBackendUnavailable(nil)
	}

	secret, err := g.store.AuthKey(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to fetch auth key")
		return "", apierr.NewStorageFault("The auth key cannot be fetched", err)
	}

	g.secret = secret
	g.loaded = true

	return secret, nil
}
