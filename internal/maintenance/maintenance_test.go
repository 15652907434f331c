package maintenance

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/gameroom/internal/apierr"
	"github.com/woozymasta/gameroom/internal/auth"
	"github.com/woozymasta/gameroom/internal/config"
	"github.com/woozymasta/gameroom/internal/idgen"
	"github.com/woozymasta/gameroom/internal/lifecycle"
	"github.com/woozymasta/gameroom/internal/models"
	"github.com/woozymasta/gameroom/internal/ports"
	"github.com/woozymasta/gameroom/internal/resolver"
	"github.com/woozymasta/gameroom/internal/storage"
)

const testIP = "203.0.113.10"

// portQuerier answers only for the listed ports.
type portQuerier map[int]bool

func (p portQuerier) Query(_ context.Context, _ string, port int) (*a2s.Info, error) {
	if p[port] {
		return &a2s.Info{Name: "up"}, nil
	}
	return nil, errors.New("i/o timeout")
}

type fixture struct {
	tasks *Tasks
	repo  *storage.Repository
	pools *ports.Manager
	out   *bytes.Buffer
}

func newFixture(t *testing.T, querier Querier) *fixture {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "gameroom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	pools := ports.New(repo, ports.Config{CommitAttempts: 100})
	rooms := lifecycle.New(repo, auth.New(repo), idgen.New(repo),
		resolver.New(resolver.Config{StaticIP: testIP}), pools)

	out := &bytes.Buffer{}
	return &fixture{
		tasks: New(repo, rooms, pools, querier, out),
		repo:  repo,
		pools: pools,
		out:   out,
	}
}

// seed inserts servers bound to committed ports starting at 27015.
func (f *fixture) seed(t *testing.T, games ...string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.tasks.Provision(ctx, testIP, "27015-27030"))
	for i, game := range games {
		port := 27015 + i
		require.NoError(t, f.pools.Commit(ctx, testIP, port))
		require.NoError(t, f.repo.InsertServer(ctx, models.GameServer{
			ServerID:    strconv.Itoa(i + 1),
			IP:          testIP,
			Port:        port,
			Name:        "room",
			Game:        game,
			GameVersion: "1.0",
			OpenedOn:    time.Now().UTC(),
		}))
	}
}

func TestProvisionAndListPools(t *testing.T) {
	f := newFixture(t, portQuerier{})

	require.NoError(t, f.tasks.Provision(context.Background(), testIP, "27015-27019"))
	require.NoError(t, f.tasks.ListPools(context.Background()))

	assert.Equal(t, testIP+"\tused=0\tavailable=5\tversion=0\n", f.out.String())
}

func TestProvisionBadRange(t *testing.T) {
	f := newFixture(t, portQuerier{})
	assert.Error(t, f.tasks.Provision(context.Background(), testIP, "27020-27015"))
}

func TestSetAuthKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, portQuerier{})

	assert.Error(t, f.tasks.SetAuthKey(ctx, "  "))
	require.NoError(t, f.tasks.SetAuthKey(ctx, "s3cret"))

	key, err := f.repo.AuthKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", key)
}

func TestReapReady(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, portQuerier{})
	f.seed(t, "dayz", "dayz", "arma3")

	require.NoError(t, f.tasks.MarkReady(ctx, "2"))
	require.NoError(t, f.tasks.MarkReady(ctx, "3"))
	assert.True(t, apierr.HasKind(f.tasks.MarkReady(ctx, "404"), apierr.NoSuchServer))

	n, err := f.tasks.ReapReady(ctx, "dayz")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.tasks.ReapReady(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := f.repo.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "1", left[0].ServerID)

	pool, err := f.repo.GetPortPool(ctx, testIP)
	require.NoError(t, err)
	assert.Equal(t, []int{27015}, pool.Used)
}

func TestReapUnreachable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, portQuerier{27015: true, 27017: true})

	games := make([]string, 12)
	for i := range games {
		games[i] = "dayz"
	}
	f.seed(t, games...)

	n, err := f.tasks.ReapUnreachable(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	left, err := f.repo.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.ElementsMatch(t, []int{27015, 27017}, []int{left[0].Port, left[1].Port})
}

func TestRunWithoutFlags(t *testing.T) {
	f := newFixture(t, portQuerier{})
	assert.False(t, Run(context.Background(), &config.Config{}, f.tasks))
}

func TestRunProvisionAndList(t *testing.T) {
	f := newFixture(t, portQuerier{})

	cfg := &config.Config{}
	cfg.Maintenance.ProvisionIP = testIP
	cfg.Maintenance.PortRange = "27015"
	cfg.Maintenance.ListPools = true

	assert.True(t, Run(context.Background(), cfg, f.tasks))
	assert.Contains(t, f.out.String(), "available=1")
}

func TestParseGame(t *testing.T) {
	assert.Empty(t, parseGame(config.AnyGame))
	assert.Equal(t, "dayz", parseGame("dayz"))
}
