// Package game queries running game servers using the Source Engine Query (A2S) protocol.
package game

import (
	"context"

	"github.com/woozymasta/a2s/pkg/a2s"
	"github.com/woozymasta/gameroom/internal/config"
)

// QueryServer connects to a game server via UDP and requests A2S_INFO.
// It returns server details (such as name, map, players) or an error if the server is unreachable.
func QueryServer(ip string, port int, options config.A2S) (*a2s.Info, error) {
	client, err := a2s.New(ip, port)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	client.BufferSize = options.BufferSize
	client.Timeout = options.Timeout

	return client.GetInfo()
}

// Querier binds the A2S options so registered servers can be queried by address.
type Querier struct {
	options config.A2S
}

// NewQuerier returns a Querier using the given options.
func NewQuerier(options config.A2S) *Querier {
	return &Querier{options: options}
}

// Query requests A2S_INFO, giving up early when ctx is done.
// The UDP exchange itself is bounded by the configured timeout.
func (q *Querier) Query(ctx context.Context, ip string, port int) (*a2s.Info, error) {
	type result struct {
		info *a2s.Info
		err  error
	}

	done := make(chan result, 1)
	go func() {
		info, err := QueryServer(ip, port, q.options)
		done <- result{info: info, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.info, r.err
	}
}
