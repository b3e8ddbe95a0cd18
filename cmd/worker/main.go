package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"classroll/internal/attendance"
	"classroll/internal/bootstrap"
	"classroll/internal/config"
	"classroll/internal/directory"
	"classroll/internal/insights"
	"classroll/internal/logger"
	"classroll/internal/metrics"
)

// Worker consumes attendance events and regenerates cached insights.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Env).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SessionBackend == "memory" || cfg.QueueBackend == "memory" {
		log.Fatal().Msg("worker needs shared SESSION_BACKEND and QUEUE_BACKEND (redis or postgres)")
	}

	backends, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Backend connect failed")
	}
	defer backends.Close()

	persistence, err := backends.Persistence(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Session store init failed")
	}
	m := metrics.New(prometheus.DefaultRegisterer)
	st := attendance.NewStore(ctx, persistence, directory.Demo(), log, attendance.WithRecorder(m))

	q, err := backends.Queue(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Queue init failed")
	}
	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Queue consume init failed")
	}

	refresher := &insights.Refresher{
		Service: backends.Insights(ctx, cfg, m, log),
		Source:  st,
		Reload:  st.Reload,
		Log:     log,
	}
	log.Info().Msg("Worker started, waiting for messages...")
	refresher.Run(ctx, messages)
	log.Info().Msg("Worker stopped")
}
