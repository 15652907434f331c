// Package ports manages the per-IP pools of game server ports.
//
// A pool partitions the ports of one public IP into a used and an available set.
// Allocate only previews the next port; Commit and Release move a port between
// the sets with a conditional write on the pool row version, re-reading and
// re-applying the move when another writer got there first.
package ports

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/woozymasta/gameroom/internal/apierr"
	"github.com/woozymasta/gameroom/internal/models"
	"github.com/woozymasta/gameroom/internal/storage"
)

// errNoChange tells mutate that the pool is already in the requested state.
var errNoChange = errors.New("no change")

// Config holds port pool options.
type Config struct {
	CommitAttempts int `long:"commit-attempts" env:"COMMIT_ATTEMPTS" description:"Attempts of a conditional pool update before giving up" default:"5"`
}

// Store is the storage session holding the pool rows.
type Store interface {
	IsConnected(ctx context.Context) bool
	GetPortPool(ctx context.Context, ip string) (*models.PortPool, error)
	UpdatePortPool(ctx context.Context, pool models.PortPool) error
	InsertPortPool(ctx context.Context, pool models.PortPool) error
	ListPortPools(ctx context.Context) ([]models.PortPool, error)
	RetireServer(ctx context.Context, serverID string, pool *models.PortPool) error
}

// Manager allocates, commits and releases ports. It keeps no state between calls.
type Manager struct {
	store    Store
	attempts int
}

// New returns a manager backed by store.
func New(store Store, cfg Config) *Manager {
	attempts := cfg.CommitAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Manager{store: store, attempts: attempts}
}

// Allocate returns the first available port of ip in persisted order without reserving it.
// The caller must Commit the port for the allocation to stick.
func (m *Manager) Allocate(ctx context.Context, ip string) (int, error) {
	pool, err := m.load(ctx, ip, "An available port cannot be determined")
	if err != nil {
		return 0, err
	}

	if len(pool.Available) == 0 {
		return 0, apierr.NewNoPortsAvailable()
	}

	return pool.Available[0], nil
}

// Commit moves port from the available to the used set of ip.
func (m *Manager) Commit(ctx context.Context, ip string, port int) error {
	return m.mutate(ctx, ip, port, m.writePool, func(pool *models.PortPool) error {
		if slices.Contains(pool.Used, port) {
			return apierr.NewPortTaken()
		}
		if !slices.Contains(pool.Available, port) {
			return apierr.NewPortNotInPool()
		}

		pool.Available = remove(pool.Available, port)
		pool.Used = append(pool.Used, port)

		return nil
	})
}

// Release moves port from the used back to the available set of ip.
// Releasing a port that is already available changes nothing.
func (m *Manager) Release(ctx context.Context, ip string, port int) error {
	return m.mutate(ctx, ip, port, m.writePool, release(port))
}

// Retire releases the port of a game server and deletes its record in one step.
// The release only applies while the record still exists, so a port handed to another
// server after a concurrent retire is never freed twice.
func (m *Manager) Retire(ctx context.Context, serverID, ip string, port int) error {
	write := func(ctx context.Context, pool *models.PortPool) error {
		err := m.store.RetireServer(ctx, serverID, pool)
		if errors.Is(err, storage.ErrNotFound) {
			return apierr.NewNoSuchServer()
		}
		return err
	}

	return m.mutate(ctx, ip, port, write, release(port))
}

func release(port int) func(*models.PortPool) error {
	return func(pool *models.PortPool) error {
		if !slices.Contains(pool.Used, port) {
			if slices.Contains(pool.Available, port) {
				return errNoChange
			}
			return apierr.NewPortNotInPool()
		}

		pool.Used = remove(pool.Used, port)
		pool.Available = append(pool.Available, port)

		return nil
	}
}

// Provision creates the pool of ip with the given ports, or replaces the available set of an
// existing pool. Ports currently used stay used even when absent from the new list.
func (m *Manager) Provision(ctx context.Context, ip string, ports []int) error {
	if err := validatePorts(ports); err != nil {
		return err
	}

	for attempt := 1; attempt <= m.attempts; attempt++ {
		pool, err := m.store.GetPortPool(ctx, ip)
		switch {
		case err == nil:
			pool.Available = make([]int, 0, len(ports))
			for _, p := range ports {
				if !slices.Contains(pool.Used, p) {
					pool.Available = append(pool.Available, p)
				}
			}
			err = m.store.UpdatePortPool(ctx, *pool)
		case errors.Is(err, storage.ErrNotFound):
			err = m.store.InsertPortPool(ctx, models.PortPool{IP: ip, Available: ports})
		default:
			return err
		}

		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
	}

	return fmt.Errorf("provision %s: %w", ip, storage.ErrVersionConflict)
}

// Pools returns every provisioned pool.
func (m *Manager) Pools(ctx context.Context) ([]models.PortPool, error) {
	return m.store.ListPortPools(ctx)
}

// load fetches a fresh view of the pool of ip, mapping storage failures to API errors.
func (m *Manager) load(ctx context.Context, ip, faultMsg string) (*models.PortPool, error) {
	if !m.store.IsConnected(ctx) {
		return nil, apierr.NewBackendUnavailable(nil)
	}

	pool, err := m.store.GetPortPool(ctx, ip)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apierr.NewNoSuchIP()
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("ip", ip).Msg("Failed to fetch port pool")
		return nil, apierr.NewStorageFault(faultMsg, err)
	}

	return pool, nil
}

// writePool stores a changed pool conditionally on its version.
func (m *Manager) writePool(ctx context.Context, pool *models.PortPool) error {
	if pool == nil {
		return nil
	}

	return m.store.UpdatePortPool(ctx, *pool)
}

// mutate applies move to a fresh view of the pool and hands the result to write,
// starting over from a new read when the row version changed in between.
// write receives nil when move left the pool as it was.
func (m *Manager) mutate(ctx context.Context, ip string, port int,
	write func(context.Context, *models.PortPool) error, move func(*models.PortPool) error,
) error {
	const faultMsg = "The port pool cannot be updated"
	logger := zerolog.Ctx(ctx).With().Str("ip", ip).Int("port", port).Logger()

	for attempt := 1; attempt <= m.attempts; attempt++ {
		pool, err := m.load(ctx, ip, faultMsg)
		if err != nil {
			return err
		}

		if err := move(pool); err != nil {
			if !errors.Is(err, errNoChange) {
				return err
			}
			logger.Warn().Msg("Port already available, nothing to release")
			pool = nil
		}

		err = write(ctx, pool)
		if err == nil {
			return nil
		}
		if apierr.KindOf(err) != "" {
			return err
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			logger.Error().Err(err).Msg("Failed to update port pool")
			return apierr.NewStorageFault(faultMsg, err)
		}

		logger.Debug().Int("attempt", attempt).Msg("Port pool changed concurrently, retrying")
	}

	logger.Error().Int("attempts", m.attempts).Msg("Port pool update kept conflicting")
	return apierr.NewStorageFault(faultMsg, storage.ErrVersionConflict)
}

// remove returns ports without any occurrence of port.
func remove(ports []int, port int) []int {
	return slices.DeleteFunc(slices.Clone(ports), func(p int) bool { return p == port })
}

func validatePorts(ports []int) error {
	if len(ports) == 0 {
		return errors.New("no ports given")
	}

	seen := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d out of range", p)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("duplicate port %d", p)
		}
		seen[p] = struct{}{}
	}

	return nil
}
