// Package idgen hands out game server identifiers from a persisted sequence.
package idgen

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/woozymasta/gameroom/internal/apierr"
)

// Sequence is the storage session backing the generator.
type Sequence interface {
	IsConnected(ctx context.Context) bool
	NextServerID(ctx context.Context) (int64, error)
}

// Generator produces unique, never reused server identifiers.
type Generator struct {
	seq Sequence
}

// New returns a generator backed by seq.
func New(seq Sequence) *Generator {
	return &Generator{seq: seq}
}

// Next returns the next server id as a decimal string, starting at "1" on an empty store.
// Ids consumed by failed operations are skipped, never handed out again.
func (g *Generator) Next(ctx context.Context) (string, error) {
	if !g.seq.IsConnected(ctx) {
		return "", apierr.NewBackendUnavailable(nil)
	}

	id, err := g.seq.NextServerID(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to advance server id sequence")
		return "", apierr.NewStorageFault("The next available server id cannot be determined", err)
	}

	return strconv.FormatInt(id, 10), nil
}
