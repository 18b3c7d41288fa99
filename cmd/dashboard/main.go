package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/atmx/userpanel/internal/config"
	"github.com/atmx/userpanel/internal/dashboard"
	"github.com/atmx/userpanel/internal/fallback"
	"github.com/atmx/userpanel/internal/gateway"
	"github.com/atmx/userpanel/internal/localstore"
	"github.com/atmx/userpanel/internal/metrics"
	"github.com/atmx/userpanel/internal/validate"
	"github.com/atmx/userpanel/internal/view"
	"github.com/atmx/userpanel/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("userpanel config loaded",
		"port", cfg.Port,
		"backend_url", cfg.BackendURL,
		"price_poll", cfg.PricePollInterval,
		"portfolio_poll", cfg.PortfolioPollInterval,
		"position_poll", cfg.PositionPollInterval,
		"locale", cfg.Locale,
		"log_level", cfg.LogLevel,
	)

	// --- Initialize local store ---
	var local localstore.Store
	var cleanup []func()

	switch {
	case cfg.DatabaseURL != "":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := localstore.NewPostgresStore(pool, "userpanel")
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("client_storage schema failed", "err", err)
			os.Exit(1)
		}
		local = pg
		slog.Info("connected to PostgreSQL")

	case cfg.RedisURL != "":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		local = localstore.NewRedisStore(rdb, "")
		slog.Info("Redis client storage enabled")

	default:
		slog.Warn("DATABASE_URL and REDIS_URL not set, using in-memory client storage (data will not persist)")
		local = localstore.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Backend gateway ---
	client, err := gateway.New(gateway.Config{
		BaseURL:    cfg.BackendURL,
		Timeout:    cfg.RequestTimeout,
		RatePerSec: cfg.RatePerSec,
		Burst:      cfg.Burst,
	}, local)
	if err != nil {
		slog.Error("gateway setup failed", "err", err)
		os.Exit(1)
	}

	// --- Fallback coins ---
	fb, err := fallback.Load(cfg.FallbackCoinsFile)
	if err != nil {
		slog.Error("fallback dataset failed", "file", cfg.FallbackCoinsFile, "err", err)
		os.Exit(1)
	}

	// --- Rendering & push ---
	limits := validate.DefaultLimits()
	renderer := view.NewRenderer(view.Options{
		Locale:         cfg.LocaleTag(),
		Currency:       cfg.CurrencySymbol,
		Limits:         limits,
		FallbackNotice: fb.Notice(),
	})
	slots := view.NewSlots()
	hub := web.NewHub(slots.All)
	slots.Attach(hub)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go hub.Run(ctx)

	// --- Dashboard ---
	dash := dashboard.New(dashboard.Options{
		Backend:  client,
		Local:    local,
		Renderer: renderer,
		Fallback: fb,
		Slots:    slots,
		Limits:   limits,
		Intervals: dashboard.Intervals{
			Prices:    cfg.PricePollInterval,
			Portfolio: cfg.PortfolioPollInterval,
			Positions: cfg.PositionPollInterval,
		},
		LocalTTL: cfg.LocalCacheTTL,
	})
	report := dash.Start(ctx)
	for _, o := range report.Outcomes {
		slog.Info("initial load",
			"resource", o.Resource,
			"ok", o.OK,
			"kind", o.Kind,
			"fallback", o.Fallback,
			"duration", o.Duration,
		)
	}
	if report.Emergency {
		slog.Error("dashboard started in emergency mode", "panic", report.Panic)
	}

	svc := web.NewService(dash)

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
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"userpanel","authenticated":%t}`, report.Authenticated)
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for slot pushes. It stays outside the
		// request timeout.
		r.Get("/ws", hub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			svc.Routes(r)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("userpanel listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down userpanel...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	dash.Stop()
	stop()
	fmt.Println("userpanel stopped")
}

func setupLogger(level, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewJSONHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
