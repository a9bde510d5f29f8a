package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/piratebg/crypto-bubbles/internal/api"
	"github.com/piratebg/crypto-bubbles/internal/config"
	"github.com/piratebg/crypto-bubbles/internal/market"
	"github.com/piratebg/crypto-bubbles/internal/metrics"
	"github.com/piratebg/crypto-bubbles/internal/physics"
	"github.com/piratebg/crypto-bubbles/internal/sim"
	"github.com/piratebg/crypto-bubbles/internal/store"
	"github.com/piratebg/crypto-bubbles/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (snapshots will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Simulation ---
	coincident := physics.CoincidentSkip
	if cfg.NudgeCoincident {
		coincident = physics.CoincidentNudge
		slog.Warn("coincident bodies will be nudged apart along +x")
	}
	session := sim.NewSession(sim.Options{
		Width:      cfg.ArenaWidth,
		Height:     cfg.ArenaHeight,
		Range:      cfg.Sizes,
		Metric:     cfg.Metric,
		MaxSpeed:   cfg.MaxSpeed,
		Coincident: coincident,
	})

	// The hub needs the loop for the on-connect frame and the loop needs the
	// hub as its sink, so the hub reads the loop through a closure.
	var loop *sim.Loop
	hub := stream.NewHub(func() *sim.Frame { return loop.Latest() })
	loop = sim.NewLoop(session, sim.LoopConfig{FrameHz: cfg.FrameHz, BroadcastHz: cfg.BroadcastHz}, hub.Broadcast)
	go hub.Run(ctx)
	go loop.Run(ctx)

	// --- Market source ---
	client := market.NewClient(market.ClientConfig{
		BaseURL:    cfg.CoinGeckoURL,
		APIKey:     cfg.CoinGeckoAPIKey,
		VsCurrency: cfg.VsCurrency,
		Timeout:    cfg.FetchTimeout,
	})
	loader := market.NewLoader(client, st, loop, market.LoaderConfig{
		FreshFor: cfg.FreshFor,
		MaxCount: cfg.MaxCount,
	})

	// Show the last stored list right away, then refresh in the background.
	if _, err := loader.Warm(ctx, cfg.DefaultCount); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("warm start failed", "err", err)
	}
	go func() {
		if _, err := loader.Load(ctx, cfg.DefaultCount); err != nil {
			slog.Warn("initial load failed", "count", cfg.DefaultCount, "err", err)
		}
	}()

	svc := api.NewService(loader, loop, st, cfg.DefaultCount)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"crypto-bubbles","generation":%d}`, loop.Generation())
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for per-frame bubble positions.
		r.Get("/ws", hub.HandleWS)

		r.Group(func(r chi.Router) {
			// Fetches are bounded by FETCH_TIMEOUT; this only guards stuck clients.
			r.Use(middleware.Timeout(30 * time.Second))

			r.Post("/load", svc.Load)
			r.Put("/mode", svc.SetMode)
			r.Put("/viewport", svc.SetViewport)
			r.Get("/frame", svc.GetFrame)

			r.Get("/snapshots", svc.ListSnapshots)
			r.Get("/snapshots/{snapshotID}", svc.GetSnapshot)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("crypto-bubbles listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down crypto-bubbles...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	<-loop.Done()
	fmt.Println("crypto-bubbles stopped")
}
