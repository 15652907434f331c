package server

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/gameroom/internal/models"
)

// Rooms is the lifecycle surface exposed over HTTP.
type Rooms interface {
	Create(ctx context.Context, key string, body []byte) (*models.GameServerSlim, error)
	List(ctx context.Context, key string) ([]models.GameServerSlim, error)
	ListByGame(ctx context.Context, key, game, version string) ([]models.GameServerSlim, error)
	Get(ctx context.Context, key, serverID string) (*models.GameServer, error)
	Status(ctx context.Context, key, serverID string) (*a2s.Info, error)
	Shutdown(ctx context.Context, key, serverID string) error
}

// HealthChecker reports whether the storage session is usable.
type HealthChecker interface {
	IsConnected(ctx context.Context) bool
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests.
type Server struct {
	// rooms runs the create, list, fetch and shutdown operations.
	rooms Rooms

	// health is checked by the readiness endpoint.
	health HealthChecker

	// limiter keeps a token bucket per caller IP for mutating routes.
	limiter *ipLimiter

	// shutdown is a signal channel used to stop the limiter cleanup routine.
	shutdown chan struct{}

	// expectedCT expected Content-Type header of create requests
	expectedCT string

	// wg waits for background routines on shutdown.
	wg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// ipLimiter is a per-IP hard rate limiter.
type ipLimiter struct {
	clients map[string]*limitedClient
	window  time.Duration
	count   int
	mu      sync.Mutex
}
