package lifecycle

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/woozymasta/gameroom/internal/models"
)

// Launcher starts and stops the game server binary bound to a record.
type Launcher interface {
	Launch(ctx context.Context, srv models.GameServer) error
	Terminate(ctx context.Context, srv models.GameServer) error
}

// NoopLauncher only logs; process management happens outside of this service.
type NoopLauncher struct{}

// Launch always succeeds.
func (NoopLauncher) Launch(ctx context.Context, srv models.GameServer) error {
	zerolog.Ctx(ctx).Debug().
		Str("server_id", srv.ServerID).
		Str("address", srv.Address()).
		Msg("Launch skipped, no process launcher configured")

	return nil
}

// Terminate always succeeds.
func (NoopLauncher) Terminate(ctx context.Context, srv models.GameServer) error {
	zerolog.Ctx(ctx).Debug().
		Str("server_id", srv.ServerID).
		Str("address", srv.Address()).
		Msg("Terminate skipped, no process launcher configured")

	return nil
}
