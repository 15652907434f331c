// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/gameroom/internal/logger"
	"github.com/woozymasta/gameroom/internal/ports"
	"github.com/woozymasta/gameroom/internal/resolver"
	"github.com/woozymasta/gameroom/internal/vars"
)

// AnyGame mark for maintenance any (all) games
const AnyGame = "AnyGame"

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server      Server          `group:"Server Options" env-namespace:"GAMEROOM"`
	Storage     Storage         `group:"Storage Options" namespace:"db" env-namespace:"GAMEROOM_DB"`
	Address     resolver.Config `group:"Public Address Options" namespace:"ip" env-namespace:"GAMEROOM_IP"`
	Ports       ports.Config    `group:"Port Pool Options" namespace:"ports" env-namespace:"GAMEROOM_PORTS"`
	GeoIP       GeoIP           `group:"GeoIP Options" namespace:"geoip" env-namespace:"GAMEROOM_GEOIP"`
	RateLimit   RateLimit       `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"GAMEROOM_RATE_LIMIT"`
	A2S         A2S             `group:"A2S Options" namespace:"a2s" env-namespace:"GAMEROOM_A2S"`
	Logger      logger.Config   `group:"Logger Options" namespace:"log" env-namespace:"GAMEROOM_LOG"`
	Maintenance Maintenance     `group:"Maintenance Options"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address      string   `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AllowedGames []string `short:"a" long:"allowed-game" env:"ALLOWED_GAMES" description:"List of games servers may be created for, empty allows any" env-delim:","`
	MaxBodySize  int64    `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"4096"`
	TrustProxy   bool     `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	ContentType  string   `long:"expect-content-type" env:"EXPECT_CONTENT_TYPE" description:"Expected Content-Type header of create requests" default:"application/json"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"gameroom.db"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"gameroom.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
	Disable  bool          `long:"disable" env:"DISABLE" description:"Do not download or read the GeoIP database"`
}

// A2S holds Source Query protocol configuration.
type A2S struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout" default:"3s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Response body buffer size" default:"1400"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit for create and shutdown: requests count" default:"8"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit for create and shutdown: window duration" default:"1m"`
}

// Maintenance holds one-shot tasks run instead of the HTTP server.
type Maintenance struct {
	// betteralign:ignore

	ProvisionIP     string `long:"provision-ip" description:"Create or replace the port pool of an IP, requires --port-range"`
	PortRange       string `long:"port-range" description:"Ports of the provisioned pool, FROM-TO or a single port"`
	SetAuthKey      string `long:"set-auth-key" description:"Store the shared API key"`
	ListPools       bool   `long:"list-pools" description:"Print every port pool"`
	MarkReady       string `long:"mark-ready" description:"Flag a game server id as ready for shutdown"`
	ReapReady       string `long:"reap-ready" description:"Shut down servers flagged ready for shutdown. Optional arg: game name." optional:"true" optional-value:"AnyGame"`
	ReapUnreachable string `long:"reap-unreachable" description:"Shut down servers not answering A2S queries. Optional arg: game name." optional:"true" optional-value:"AnyGame"`
	GenerateCount   int    `long:"gen-fake-data" hidden:"true"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return &cfg
}

// Validate checks flag combinations go-flags cannot express.
func (c *Config) Validate() error {
	if (c.Maintenance.ProvisionIP == "") != (c.Maintenance.PortRange == "") {
		return fmt.Errorf("flags `--provision-ip' and `--port-range' must be specified together")
	}

	if c.Ports.CommitAttempts < 1 {
		return fmt.Errorf("flag `--ports-commit-attempts' must be at least 1, got %d", c.Ports.CommitAttempts)
	}

	if c.Server.MaxBodySize < 1 {
		return fmt.Errorf("flag `--max-body-size' must be positive, got %d", c.Server.MaxBodySize)
	}

	return nil
}
