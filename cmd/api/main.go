package main

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"trackmybus/internal/api"
	"trackmybus/internal/config"
	"trackmybus/internal/metrics"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if os.Getenv("LOG_PRETTY") != "" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init server")
	}

	mux := http.NewServeMux()

	// Routes and feeds
	mux.HandleFunc("/v1/routes", srvDeps.RoutesHandler)
	mux.HandleFunc("/v1/routes/", srvDeps.RouteByIDHandler) // includes /updates, /updates/stream

	// Updates
	mux.HandleFunc("/v1/updates", srvDeps.UpdatesHandler)
	mux.HandleFunc("/v1/updates/", srvDeps.UpdateByIDHandler) // includes /verify

	// Rider-facing extras
	mux.HandleFunc("/v1/me/updates", srvDeps.MyUpdatesHandler)
	mux.HandleFunc("/v1/leaderboard", srvDeps.LeaderboardHandler)

	// Live watchers
	mux.HandleFunc("/v1/ws", srvDeps.WSHandler)

	// Health and introspection
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/debug", srvDeps.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           srvDeps.Instrument(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("API listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}
