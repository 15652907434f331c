// Package fake provides utilities for generating random game server data for testing and development purposes.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gameroom/internal/models"
)

// basePort is the first port of every generated pool.
const basePort = 27015

// Store is the storage populated by the generator.
type Store interface {
	NextServerID(ctx context.Context) (int64, error)
	InsertServer(ctx context.Context, s models.GameServer) error
}

// Pools provisions and commits ports.
type Pools interface {
	Provision(ctx context.Context, ip string, ports []int) error
	Commit(ctx context.Context, ip string, port int) error
}

// GenerateData populates the storage with a specified number of randomized game server records
// spread over a few port pools. It simulates various games, versions, countries, and player caps.
// It returns the number of records created.
func GenerateData(ctx context.Context, store Store, pools Pools, count int) int {
	games := map[string][]string{
		"dayz":   {"1.25.170000", "1.26.180000"},
		"arma3":  {"2.18", "2.20"},
		"rust":   {"2589"},
		"cs2":    {"1.40.5.1"},
		"chess":  {"1.0"},
		"sakhal": {"0.9.1-beta"},
	}
	names := make([]string, 0, len(games))
	for g := range games {
		names = append(names, g)
	}
	descriptions := []string{"", "PvP", "PvE", "Hardcore", "Vanilla", "Modded [EU]"}

	// Countries list
	countriesHigh := []string{"US", "DE", "RU", "CN", "BR", "FR", "GB", "PL", "CZ", "KZ", "UA"}
	countriesMid := []string{"CA", "AU", "IT", "ES", "NL", "SE", "JP", "KR", "TR", "BE", "RO"}
	countriesLow := []string{"ZA", "AR", "MX", "IN", "ID", "VN", "CH", "NO", "FI", "DK", "PT"}

	// One pool per host, sized so every host has spare ports
	type host struct {
		Address string
		Country string
		Next    int
	}
	hostCount := count/20 + 1
	perHost := 2*count/hostCount + 10
	hosts := make([]*host, 0, hostCount)

	for i := 0; i < hostCount; i++ {
		ip := fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(254)+1)

		var country string
		roll := rand.Float32()
		switch {
		case roll < 0.70:
			country = countriesHigh[rand.Intn(len(countriesHigh))]
		case roll < 0.90:
			country = countriesMid[rand.Intn(len(countriesMid))]
		default:
			country = countriesLow[rand.Intn(len(countriesLow))]
		}

		ports := make([]int, perHost)
		for p := range ports {
			ports[p] = basePort + p
		}
		if err := pools.Provision(ctx, ip, ports); err != nil {
			log.Warn().Err(err).Str("ip", ip).Msg("Failed to generate fake port pool")
			continue
		}

		hosts = append(hosts, &host{Address: ip, Country: country, Next: basePort})
	}

	created := 0
	for i := 0; i < count && len(hosts) > 0; i++ {
		h := hosts[rand.Intn(len(hosts))]
		if h.Next >= basePort+perHost {
			continue
		}
		port := h.Next
		h.Next++

		id, err := store.NextServerID(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server id")
			return created
		}

		if err := pools.Commit(ctx, h.Address, port); err != nil {
			log.Warn().Err(err).Str("ip", h.Address).Int("port", port).Msg("Failed to commit fake port")
			continue
		}

		game := names[rand.Intn(len(names))]
		versions := games[game]

		// Random open time in 30 days range
		opened := time.Now().UTC().
			Add(-time.Duration(rand.Intn(30)) * 24 * time.Hour).
			Add(-time.Duration(rand.Intn(1440)) * time.Minute)

		srv := models.GameServer{
			ServerID:         strconv.FormatInt(id, 10),
			IP:               h.Address,
			Port:             port,
			Name:             fmt.Sprintf("%s Server #%d", game, rand.Intn(1000)),
			Description:      descriptions[rand.Intn(len(descriptions))],
			Game:             game,
			GameVersion:      versions[rand.Intn(len(versions))],
			MaxPlayers:       []int{2, 10, 32, 60, 100}[rand.Intn(5)],
			CountryCode:      h.Country,
			OpenedOn:         opened,
			ReadyForShutdown: rand.Float32() < 0.1, // 10% chance marked for reaping
		}

		if err := store.InsertServer(ctx, srv); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake game server")
			continue
		}
		created++
	}

	return created
}
