// Package lifecycle composes the authorization gate, id generator, address resolver,
// port pool and storage into the create, list, fetch and shutdown operations.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/gameroom/internal/apierr"
	"github.com/woozymasta/gameroom/internal/models"
	"github.com/woozymasta/gameroom/internal/storage"
)

// Authorizer checks the caller supplied key.
type Authorizer interface {
	Authorize(ctx context.Context, key string) error
}

// IDGenerator hands out unique server ids.
type IDGenerator interface {
	Next(ctx context.Context) (string, error)
}

// AddressResolver returns the public IP new servers are bound to.
type AddressResolver interface {
	PublicIP(ctx context.Context) (string, error)
}

// PortPool allocates ports per IP. Retire releases the port of a server together
// with deleting its record.
type PortPool interface {
	Allocate(ctx context.Context, ip string) (int, error)
	Commit(ctx context.Context, ip string, port int) error
	Retire(ctx context.Context, serverID, ip string, port int) error
}

// Store persists game server records.
type Store interface {
	IsConnected(ctx context.Context) bool
	InsertServer(ctx context.Context, s models.GameServer) error
	GetServer(ctx context.Context, serverID string) (*models.GameServer, error)
	ListServers(ctx context.Context) ([]models.GameServer, error)
	ListServersByGame(ctx context.Context, game, version string) ([]models.GameServer, error)
}

// CountryResolver maps an IP to an ISO country code, empty when unknown.
type CountryResolver interface {
	GetCountryCode(ip string) string
}

// StatusQuerier asks a running game server for its live info.
type StatusQuerier interface {
	Query(ctx context.Context, ip string, port int) (*a2s.Info, error)
}

// Option customizes a Service.
type Option func(*Service)

// WithLauncher sets the process hook run on create and shutdown.
func WithLauncher(l Launcher) Option {
	return func(s *Service) { s.launcher = l }
}

// WithCountries enables country lookup of resolved IPs.
func WithCountries(c CountryResolver) Option {
	return func(s *Service) { s.countries = c }
}

// WithStatusQuerier enables live status queries.
func WithStatusQuerier(q StatusQuerier) Option {
	return func(s *Service) { s.status = q }
}

// WithClaimAttempts bounds how often create moves on to the next port when the
// previewed one was taken by a concurrent create.
func WithClaimAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithAllowedGames restricts create to the listed games, compared case-insensitively.
// An empty list allows every game.
func WithAllowedGames(games []string) Option {
	return func(s *Service) {
		if len(games) == 0 {
			s.allowedGames = nil
			return
		}

		s.allowedGames = make(map[uint64]struct{}, len(games))
		for _, g := range games {
			s.allowedGames[gameHash(g)] = struct{}{}
		}
	}
}

// Service is the lifecycle orchestrator.
type Service struct {
	store        Store
	gate         Authorizer
	ids          IDGenerator
	addr         AddressResolver
	pool         PortPool
	launcher     Launcher
	countries    CountryResolver
	status       StatusQuerier
	allowedGames map[uint64]struct{}
	attempts     int
	now          func() time.Time
}

// New builds a Service from its collaborators.
func New(store Store, gate Authorizer, ids IDGenerator, addr AddressResolver, pool PortPool, opts ...Option) *Service {
	s := &Service{
		store:    store,
		gate:     gate,
		ids:      ids,
		addr:     addr,
		pool:     pool,
		launcher: NoopLauncher{},
		attempts: 5,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Create registers a new game server bound to the public IP and the first free port.
func (s *Service) Create(ctx context.Context, key string, body []byte) (*models.GameServerSlim, error) {
	if err := s.gate.Authorize(ctx, key); err != nil {
		return nil, err
	}

	req, err := ParseCreateInput(body)
	if err != nil {
		return nil, err
	}

	if !s.gameAllowed(req.Game) {
		return nil, apierr.NewGameNotAllowed(req.Game)
	}

	id, err := s.ids.Next(ctx)
	if err != nil {
		return nil, err
	}

	ip, err := s.addr.PublicIP(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Public IP lookup failed")
		return nil, apierr.NewAddressUnresolved(err)
	}

	srv := models.GameServer{
		ServerID:    id,
		IP:          ip,
		Name:        req.Name,
		Description: req.Description,
		Game:        req.Game,
		GameVersion: req.GameVersion,
		MaxPlayers:  req.MaxPlayers,
		OpenedOn:    s.now(),
	}
	if s.countries != nil {
		srv.CountryCode = s.countries.GetCountryCode(ip)
	}

	if err := s.claim(ctx, &srv); err != nil {
		return nil, err
	}

	l := zerolog.Ctx(ctx).With().
		Str("server_id", id).
		Str("address", srv.Address()).
		Logger()

	// The port stays committed when the record cannot be written; it is
	// logged so it can be released with the maintenance tools.
	if !s.store.IsConnected(ctx) {
		l.Error().Msg("Port committed but game server record not persisted")
		return nil, apierr.NewBackendUnavailable(nil)
	}
	if err := s.store.InsertServer(ctx, srv); err != nil {
		l.Error().Err(err).Msg("Port committed but game server record not persisted")
		return nil, apierr.NewStorageFault("The game server cannot be created", err)
	}

	l.Info().Str("game", srv.Game).Str("game_version", srv.GameVersion).Msg("Game server created")

	slim := srv.Slim()
	return &slim, nil
}

// claim launches srv on the first available port and commits that port. A port
// committed by a concurrent create in the meantime is given up for the next one.
func (s *Service) claim(ctx context.Context, srv *models.GameServer) error {
	for attempt := 1; ; attempt++ {
		port, err := s.pool.Allocate(ctx, srv.IP)
		if err != nil {
			return err
		}
		srv.Port = port

		l := zerolog.Ctx(ctx).With().
			Str("server_id", srv.ServerID).
			Str("address", srv.Address()).
			Logger()

		if err := s.launcher.Launch(ctx, *srv); err != nil {
			l.Error().Err(err).Msg("Game server launch failed")
			return apierr.NewLauncherFailed("The game server cannot be launched", err)
		}

		err = s.pool.Commit(ctx, srv.IP, port)
		if err == nil {
			return nil
		}

		if err := s.launcher.Terminate(ctx, *srv); err != nil {
			l.Error().Err(err).Msg("Unclaimed game server termination failed")
		}

		lost := apierr.HasKind(err, apierr.PortTaken) || apierr.HasKind(err, apierr.PortNotInPool)
		if !lost || attempt >= s.attempts {
			return err
		}

		l.Debug().Int("attempt", attempt).Msg("Port claimed concurrently, trying the next one")
	}
}

// List returns every registered server.
func (s *Service) List(ctx context.Context, key string) ([]models.GameServerSlim, error) {
	if err := s.gate.Authorize(ctx, key); err != nil {
		return nil, err
	}

	if !s.store.IsConnected(ctx) {
		return nil, apierr.NewBackendUnavailable(nil)
	}

	servers, err := s.store.ListServers(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Listing game servers failed")
		return nil, apierr.NewStorageFault("The game servers cannot be fetched", err)
	}

	return slims(servers), nil
}

// ListByGame returns the servers matching a game pattern and an exact version.
func (s *Service) ListByGame(ctx context.Context, key, game, version string) ([]models.GameServerSlim, error) {
	if err := s.gate.Authorize(ctx, key); err != nil {
		return nil, err
	}

	if !s.store.IsConnected(ctx) {
		return nil, apierr.NewBackendUnavailable(nil)
	}

	servers, err := s.store.ListServersByGame(ctx, game, version)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("game", game).Str("game_version", version).Msg("Listing game servers failed")
		return nil, apierr.NewStorageFault("The game servers cannot be fetched", err)
	}

	return slims(servers), nil
}

// Get returns the full record of one server.
func (s *Service) Get(ctx context.Context, key, serverID string) (*models.GameServer, error) {
	if err := s.gate.Authorize(ctx, key); err != nil {
		return nil, err
	}

	return s.fetch(ctx, serverID)
}

// Status queries the live A2S info of a registered server.
func (s *Service) Status(ctx context.Context, key, serverID string) (*a2s.Info, error) {
	srv, err := s.Get(ctx, key, serverID)
	if err != nil {
		return nil, err
	}

	if s.status == nil {
		return nil, apierr.NewServerUnreachable(errors.New("status queries are disabled"))
	}

	info, err := s.status.Query(ctx, srv.IP, srv.Port)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("server_id", serverID).Str("address", srv.Address()).Msg("A2S query failed")
		return nil, apierr.NewServerUnreachable(err)
	}

	return info, nil
}

// Shutdown terminates a server, then returns its port to the pool and deletes its
// record together. Of two concurrent shutdowns only one releases the port.
func (s *Service) Shutdown(ctx context.Context, key, serverID string) error {
	if err := s.gate.Authorize(ctx, key); err != nil {
		return err
	}

	return s.teardown(ctx, serverID)
}

// Reap runs the shutdown sequence without a key. Callers must be trusted.
func (s *Service) Reap(ctx context.Context, serverID string) error {
	return s.teardown(ctx, serverID)
}

func (s *Service) teardown(ctx context.Context, serverID string) error {
	srv, err := s.fetch(ctx, serverID)
	if err != nil {
		return err
	}

	l := zerolog.Ctx(ctx).With().
		Str("server_id", serverID).
		Str("address", srv.Address()).
		Logger()

	if err := s.launcher.Terminate(ctx, *srv); err != nil {
		l.Error().Err(err).Msg("Game server termination failed")
		return apierr.NewLauncherFailed("The game server cannot be terminated", err)
	}

	if err := s.pool.Retire(ctx, serverID, srv.IP, srv.Port); err != nil {
		return err
	}

	l.Info().Msg("Game server shut down")

	return nil
}

func (s *Service) fetch(ctx context.Context, serverID string) (*models.GameServer, error) {
	if !s.store.IsConnected(ctx) {
		return nil, apierr.NewBackendUnavailable(nil)
	}

	srv, err := s.store.GetServer(ctx, serverID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apierr.NewNoSuchServer()
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("server_id", serverID).Msg("Fetching game server failed")
		return nil, apierr.NewStorageFault("The game server cannot be fetched", err)
	}

	return srv, nil
}

func (s *Service) gameAllowed(game string) bool {
	if s.allowedGames == nil {
		return true
	}

	_, ok := s.allowedGames[gameHash(game)]
	return ok
}

func gameHash(game string) uint64 {
	return xxhash.Sum64String(strings.ToLower(strings.TrimSpace(game)))
}

func slims(servers []models.GameServer) []models.GameServerSlim {
	out := make([]models.GameServerSlim, 0, len(servers))
	for _, srv := range servers {
		out = append(out, srv.Slim())
	}

	return out
}
