// Package resolver determines the public IP new game servers are bound to.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/woozymasta/gameroom/internal/vars"
)

// maxBody caps the lookup response read from the remote service.
const maxBody = 4 << 10

var (
	// ErrMissingIP is returned when the lookup payload has no usable "ip" field.
	ErrMissingIP = errors.New("ip lookup response has no valid ip")
)

// Config holds address lookup options.
type Config struct {
	URL      string        `long:"lookup-url" env:"LOOKUP_URL" description:"Public IP lookup service returning {\"ip\": \"...\"}" default:"https://api.ipify.org?format=json"`
	StaticIP string        `long:"static" env:"STATIC" description:"Fixed public IP, disables the lookup service"`
	Timeout  time.Duration `long:"timeout" env:"TIMEOUT" description:"Lookup request timeout" default:"5s"`
}

// Resolver looks up the host public IP through an external HTTP service.
type Resolver struct {
	client   *http.Client
	url      string
	staticIP string
}

type lookupResponse struct {
	IP *string `json:"ip"`
}

// New returns a resolver for the given configuration.
func New(cfg Config) *Resolver {
	return &Resolver{
		client:   &http.Client{Timeout: cfg.Timeout},
		url:      cfg.URL,
		staticIP: cfg.StaticIP,
	}
}

// PublicIP performs a single lookup. Any transport, status or payload problem is an error;
// nothing is retried.
func (r *Resolver) PublicIP(ctx context.Context) (string, error) {
	if r.staticIP != "" {
		return r.staticIP, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", vars.UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ip lookup returned status %d", resp.StatusCode)
	}

	var payload lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode ip lookup response: %w", err)
	}

	if payload.IP == nil || net.ParseIP(*payload.IP) == nil {
		return "", ErrMissingIP
	}

	zerolog.Ctx(ctx).Debug().Str("ip", *payload.IP).Msg("Public IP resolved")

	return *payload.IP, nil
}
