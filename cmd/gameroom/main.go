// main is the entry point of the GameRoom application.
// It initializes the configuration, logger, database, GeoIP provider, and starts the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/gameroom/internal/auth"
	"github.com/woozymasta/gameroom/internal/config"
	"github.com/woozymasta/gameroom/internal/fake"
	"github.com/woozymasta/gameroom/internal/game"
	"github.com/woozymasta/gameroom/internal/geoip"
	"github.com/woozymasta/gameroom/internal/idgen"
	"github.com/woozymasta/gameroom/internal/lifecycle"
	"github.com/woozymasta/gameroom/internal/logger"
	"github.com/woozymasta/gameroom/internal/maintenance"
	"github.com/woozymasta/gameroom/internal/ports"
	"github.com/woozymasta/gameroom/internal/resolver"
	"github.com/woozymasta/gameroom/internal/server"
	"github.com/woozymasta/gameroom/internal/storage"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Msg("Starting gameroom service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	pools := ports.New(store, cfg.Ports)
	querier := game.NewQuerier(cfg.A2S)

	opts := []lifecycle.Option{
		lifecycle.WithStatusQuerier(querier),
		lifecycle.WithAllowedGames(cfg.Server.AllowedGames),
		lifecycle.WithClaimAttempts(cfg.Ports.CommitAttempts),
	}

	// GeoIP
	if !cfg.GeoIP.Disable {
		if geoProvider := openGeoIP(ctx, cfg.GeoIP); geoProvider != nil {
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
			opts = append(opts, lifecycle.WithCountries(geoProvider))
		}
	}

	rooms := lifecycle.New(store, auth.New(store), idgen.New(store), resolver.New(cfg.Address), pools, opts...)

	// data generation or database maintenance
	if cfg.Maintenance.GenerateCount > 0 {
		n := fake.GenerateData(ctx, store, pools, cfg.Maintenance.GenerateCount)
		log.Info().Int("created", n).Msg("Fake data generated")
		return
	} else if maintenance.Run(ctx, cfg, maintenance.New(store, rooms, pools, querier, os.Stdout)) {
		return
	}

	// Init server
	srvHandler := server.New(rooms, store, cfg)

	// Background routines
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
}

// openGeoIP refreshes and opens the GeoIP database. It returns nil when country detection is unavailable.
func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	log.Info().Msg("Checking GeoIP database...")
	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	geoProvider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return geoProvider
}
