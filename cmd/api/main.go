package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/safar/osushi-store/internal/api"
	"github.com/safar/osushi-store/internal/cart"
	"github.com/safar/osushi-store/internal/catalog"
	"github.com/safar/osushi-store/internal/checkout"
	"github.com/safar/osushi-store/internal/config"
	"github.com/safar/osushi-store/internal/database"
	"github.com/safar/osushi-store/internal/lock"
	"github.com/safar/osushi-store/internal/logger"
	"github.com/safar/osushi-store/internal/metrics"
	"github.com/safar/osushi-store/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "osushi-api"}).Error(context.Background(), "load config", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "osushi-api",
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	db, err := database.NewConnection(ctx, &cfg.Database)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		logg.Warn(ctx, "DATABASE_URL not set, catalog and orders are unavailable")
	case err != nil:
		logg.Error(ctx, "connect to database, continuing without it", err)
		db = nil
	default:
		defer db.Close()
		logg.Info(ctx, "connected to database")
	}

	storage, cartKey, locker, cleanup := sessionBackends(ctx, cfg, logg)
	defer cleanup()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	orders := checkout.NewService(
		repository(db),
		locker,
		logg,
		checkout.Config{OrderNumberAttempts: cfg.Checkout.OrderNumberAttempts},
		checkout.WithMetrics(m),
	)

	router := api.NewRouter(api.Options{
		Catalog: catalog.NewProvider(db, logg),
		Orders:  orders,
		Carts: func(session string) *cart.Store {
			return cart.NewStore(storage, cartKey(session), cart.WithLogger(logg), cart.WithObserver(m.CartObserver()))
		},
		Logger:             logg,
		Metrics:            promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		DefaultDeliveryFee: cfg.Checkout.DeliveryFee(),
		OrderRatePerMinute: cfg.Server.OrderRatePerMinute,
		OrderRateBurst:     cfg.Server.OrderRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", srv.Addr), "server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// repository keeps the interface nil when there is no database so the
// service reports CONFIGURATION instead of dereferencing a nil pool.
func repository(db *sql.DB) checkout.Repository {
	if db == nil {
		return nil
	}
	return checkout.NewSQLRepository(db)
}

// sessionBackends picks Redis for carts and checkout locks when REDIS_URL is
// set and falls back to process memory otherwise.
func sessionBackends(ctx context.Context, cfg *config.Config, logg *logger.Logger) (cart.Storage, func(string) string, lock.Locker, func()) {
	memoryKey := func(session string) string {
		return cfg.Redis.KeyPrefix + ":cart:" + session
	}
	local := func() (cart.Storage, func(string) string, lock.Locker, func()) {
		return cart.NewMemoryStorage(), memoryKey, lock.NewLocalLocker(cfg.Checkout.LockTTL), func() {}
	}

	if cfg.Redis.URL == "" {
		logg.Info(ctx, "REDIS_URL not set, carts and locks kept in memory")
		return local()
	}

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "connect to redis, keeping carts in memory", err)
		return local()
	}

	locker, err := lock.NewRedisLocker(client, cfg.Checkout.LockTTL)
	if err != nil {
		_ = client.Close()
		logg.Error(ctx, "build redis locker", err)
		return local()
	}

	closeClient := func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "close redis", err)
		}
	}
	return cart.NewRedisStorage(client, cfg.Redis.CartTTL), client.CartKey, locker.WithPrefix(client.LockPrefix()), closeClient
}
