// Package maintenance provide tools for provisioning port pools and cleaning up game servers
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/gameroom/internal/apierr"
	"github.com/woozymasta/gameroom/internal/config"
	"github.com/woozymasta/gameroom/internal/models"
	"github.com/woozymasta/gameroom/internal/ports"
	"github.com/woozymasta/gameroom/internal/storage"
)

// workers is the size of the reaper worker pool.
const workers = 10

// Store is the storage used by maintenance tasks.
type Store interface {
	ServersSubset(ctx context.Context, game string, readyOnly bool) ([]models.GameServer, error)
	SetReadyForShutdown(ctx context.Context, serverID string, ready bool) (int64, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Reaper runs the trusted shutdown sequence of a game server.
type Reaper interface {
	Reap(ctx context.Context, serverID string) error
}

// PoolAdmin provisions and lists port pools.
type PoolAdmin interface {
	Provision(ctx context.Context, ip string, ports []int) error
	Pools(ctx context.Context) ([]models.PortPool, error)
}

// Querier asks a game server for its live info.
type Querier interface {
	Query(ctx context.Context, ip string, port int) (*a2s.Info, error)
}

// Tasks bundles the collaborators of the maintenance tasks.
type Tasks struct {
	store   Store
	reaper  Reaper
	pools   PoolAdmin
	querier Querier
	out     io.Writer
}

// New returns the maintenance tasks. Reports are written to out.
func New(store Store, reaper Reaper, pools PoolAdmin, querier Querier, out io.Writer) *Tasks {
	return &Tasks{store: store, reaper: reaper, pools: pools, querier: querier, out: out}
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, t *Tasks) bool {
	m := cfg.Maintenance
	ran := false

	if m.SetAuthKey != "" {
		ran = true
		if err := t.SetAuthKey(ctx, m.SetAuthKey); err != nil {
			log.Error().Err(err).Msg("Failed to store auth key")
		} else {
			log.Info().Msg("Auth key stored, restart running services to apply it")
		}
	}

	if m.ProvisionIP != "" {
		ran = true
		if err := t.Provision(ctx, m.ProvisionIP, m.PortRange); err != nil {
			log.Error().Err(err).Str("ip", m.ProvisionIP).Msg("Failed to provision port pool")
		} else {
			log.Info().Str("ip", m.ProvisionIP).Str("ports", m.PortRange).Msg("Port pool provisioned")
		}
	}

	if m.MarkReady != "" {
		ran = true
		if err := t.MarkReady(ctx, m.MarkReady); err != nil {
			log.Error().Err(err).Str("server_id", m.MarkReady).Msg("Failed to flag game server")
		}
	}

	if m.ReapReady != "" {
		ran = true
		game := parseGame(m.ReapReady)
		log.Info().Str("game_filter", game).Msg("Reaping game servers ready for shutdown...")
		n, err := t.ReapReady(ctx, game)
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch game servers")
		} else {
			log.Info().Int64("reaped", n).Msg("Reap finished")
		}
	}

	if m.ReapUnreachable != "" {
		ran = true
		game := parseGame(m.ReapUnreachable)
		log.Info().Str("game_filter", game).Msgf("Reaping unreachable game servers with %d workers...", workers)
		n, err := t.ReapUnreachable(ctx, game)
		if err != nil {
			log.Error().Err(err).Msg("Failed to fetch game servers")
		} else {
			log.Info().Int64("reaped", n).Msg("Reap finished")
		}
	}

	if m.ListPools {
		ran = true
		if err := t.ListPools(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to list port pools")
		}
	}

	return ran
}

// parseGame handles the optional value logic.
// A flag given without a value comes as "AnyGame", which means no filter.
func parseGame(input string) string {
	if input == config.AnyGame {
		return ""
	}

	return input
}

// SetAuthKey stores the shared API key.
func (t *Tasks) SetAuthKey(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("auth key must not be blank")
	}

	return t.store.SetSetting(ctx, storage.AuthKeySetting, key)
}

// Provision creates or replaces the pool of ip with the ports of portRange.
func (t *Tasks) Provision(ctx context.Context, ip, portRange string) error {
	list, err := ports.ParseRange(portRange)
	if err != nil {
		return err
	}

	return t.pools.Provision(ctx, ip, list)
}

// MarkReady flags a game server as ready for shutdown.
func (t *Tasks) MarkReady(ctx context.Context, serverID string) error {
	n, err := t.store.SetReadyForShutdown(ctx, serverID, true)
	if err != nil {
		return err
	}
	if n == 0 {
		return apierr.NewNoSuchServer()
	}

	return nil
}

// ListPools prints every port pool.
func (t *Tasks) ListPools(ctx context.Context) error {
	pools, err := t.pools.Pools(ctx)
	if err != nil {
		return err
	}

	for _, p := range pools {
		_, _ = fmt.Fprintf(t.out, "%s\tused=%d\tavailable=%d\tversion=%d\n",
			p.IP, len(p.Used), len(p.Available), p.Version)
	}

	return nil
}

// ReapReady shuts down every server flagged ready for shutdown and returns how many were reaped.
func (t *Tasks) ReapReady(ctx context.Context, game string) (int64, error) {
	servers, err := t.store.ServersSubset(ctx, game, true)
	if err != nil {
		return 0, err
	}

	return t.runWorkerPool(ctx, servers, func(context.Context, models.GameServer) bool { return true }), nil
}

// ReapUnreachable shuts down every server not answering A2S queries and returns how many were reaped.
func (t *Tasks) ReapUnreachable(ctx context.Context, game string) (int64, error) {
	servers, err := t.store.ServersSubset(ctx, game, false)
	if err != nil {
		return 0, err
	}

	return t.runWorkerPool(ctx, servers, t.unreachable), nil
}

func (t *Tasks) unreachable(ctx context.Context, srv models.GameServer) bool {
	_, err := t.querier.Query(ctx, srv.IP, srv.Port)
	if err != nil {
		log.Debug().Err(err).Str("server_id", srv.ServerID).Str("address", srv.Address()).Msg("Server unreachable")
		return true
	}

	log.Trace().Str("server_id", srv.ServerID).Msg("Server answered, kept")
	return false
}

// runWorkerPool reaps the servers selected by doomed and returns the count of successful reaps.
func (t *Tasks) runWorkerPool(ctx context.Context, servers []models.GameServer, doomed func(context.Context, models.GameServer) bool) int64 {
	if len(servers) == 0 {
		log.Info().Msg("No game servers found for maintenance")
		return 0
	}

	jobs := make(chan models.GameServer, len(servers))
	var (
		wg     sync.WaitGroup
		reaped atomic.Int64
	)

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for srv := range jobs {
				if ctx.Err() != nil || !doomed(ctx, srv) {
					continue
				}
				if t.reap(ctx, srv) {
					reaped.Add(1)
				}
			}
		}()
	}

	// Send jobs
	for _, srv := range servers {
		jobs <- srv
	}
	close(jobs)

	wg.Wait()

	return reaped.Load()
}

func (t *Tasks) reap(ctx context.Context, srv models.GameServer) bool {
	logCtx := log.With().
		Str("server_id", srv.ServerID).
		Str("game", srv.Game).
		Str("address", srv.Address()).
		Logger()

	if err := t.reaper.Reap(logCtx.WithContext(ctx), srv.ServerID); err != nil {
		logCtx.Error().Err(err).Msg("Failed to reap game server")
		return false
	}

	logCtx.Info().Msg("Game server reaped")
	return true
}
