package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"classroll/internal/api"
	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/bootstrap"
	"classroll/internal/config"
	"classroll/internal/directory"
	"classroll/internal/httpmiddleware"
	"classroll/internal/insights"
	"classroll/internal/logger"
	"classroll/internal/metrics"
	"classroll/internal/queue"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Env)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("HTTP server failed")
	}
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg, log)
	defer backends.Close()
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	dir := directory.Demo()

	persistence, err := backends.Persistence(ctx, cfg)
	if err != nil {
		return err
	}
	st := attendance.NewStore(ctx, persistence, dir, log, attendance.WithRecorder(m))
	if cfg.SeedDemoData && st.Len() == 0 {
		now := time.Now()
		rng := rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))
		added := st.Seed(ctx, attendance.DemoRecords(dir.List(), now, rng))
		log.Info().Int("records", added).Msg("Seeded demo attendance")
	}

	q, err := backends.Queue(cfg)
	if err != nil {
		return err
	}
	insightSvc := backends.Insights(ctx, cfg, m, log)

	// With the in-memory queue nothing outside this process can consume,
	// so refresh insights here.
	if mem, ok := q.(*queue.InMemory); ok {
		msgs, err := mem.Consume(ctx)
		if err != nil {
			return err
		}
		refresher := &insights.Refresher{Service: insightSvc, Source: st, Log: log}
		go refresher.Run(ctx, msgs)
	}

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Prune(10 * time.Minute); n > 0 {
					log.Debug().Int("buckets", n).Msg("Pruned idle rate-limit buckets")
				}
			}
		}
	}()

	health := map[string]api.HealthCheck{}
	if backends.Redis != nil {
		health["redis"] = backends.Redis.Healthy
	}
	if backends.DB != nil {
		health["postgres"] = backends.DB.Healthy
	}

	router := api.NewRouter(api.Deps{
		Store:          st,
		Directory:      dir,
		Signer:         auth.NewSigner(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Insights:       insightSvc,
		Queue:          q,
		Limiter:        limiter,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		Health:         health,
		Log:            log,
		CORSOrigins:    cfg.CORSOrigins,
		Production:     cfg.Production(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.HTTPPort).
			Str("session_backend", cfg.SessionBackend).
			Str("queue_backend", cfg.QueueBackend).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}
