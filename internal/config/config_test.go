package config

import (
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseArgs(t *testing.T, args ...string) Config {
	t.Helper()
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"
	_, err := parser.ParseArgs(args)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := parseArgs(t)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "gameroom.db", cfg.Storage.Path)
	assert.Equal(t, 5, cfg.Ports.CommitAttempts)
	assert.Equal(t, "https://api.ipify.org?format=json", cfg.Address.URL)
	assert.Empty(t, cfg.Server.AllowedGames)
	require.NoError(t, cfg.Validate())
}

func TestNamespacedFlags(t *testing.T) {
	cfg := parseArgs(t, "--ip-static", "203.0.113.10", "--ports-commit-attempts", "9", "--db-path", "/tmp/x.db")

	assert.Equal(t, "203.0.113.10", cfg.Address.StaticIP)
	assert.Equal(t, 9, cfg.Ports.CommitAttempts)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("GAMEROOM_ALLOWED_GAMES", "dayz,arma3")
	t.Setenv("GAMEROOM_IP_STATIC", "198.51.100.7")

	cfg := parseArgs(t)

	assert.Equal(t, []string{"dayz", "arma3"}, cfg.Server.AllowedGames)
	assert.Equal(t, "198.51.100.7", cfg.Address.StaticIP)
}

func TestReapOptionalValue(t *testing.T) {
	cfg := parseArgs(t, "--reap-unreachable")
	assert.Equal(t, AnyGame, cfg.Maintenance.ReapUnreachable)

	cfg = parseArgs(t, "--reap-ready=dayz")
	assert.Equal(t, "dayz", cfg.Maintenance.ReapReady)
}

func TestValidateProvisionNeedsRange(t *testing.T) {
	cfg := parseArgs(t, "--provision-ip", "203.0.113.10")
	assert.Error(t, cfg.Validate())

	cfg = parseArgs(t, "--provision-ip", "203.0.113.10", "--port-range", "27015-27020")
	assert.NoError(t, cfg.Validate())
}
