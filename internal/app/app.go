package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shopkit/checkout/db"
	"github.com/shopkit/checkout/internal/api"
	"github.com/shopkit/checkout/internal/catalog"
	"github.com/shopkit/checkout/internal/checkout"
	"github.com/shopkit/checkout/internal/coupon"
	"github.com/shopkit/checkout/internal/order"
	"github.com/shopkit/checkout/internal/storage"
	"github.com/shopkit/checkout/internal/storage/memory"
	"github.com/shopkit/checkout/internal/storage/postgres"
	"github.com/shopkit/checkout/internal/storage/redis"
	"github.com/shopkit/checkout/pkg/health"
	"github.com/shopkit/checkout/pkg/httpmiddleware"
)

// deps holds the backend-specific pieces assembled by buildBackend.
type deps struct {
	kv      storage.KV
	catalog catalog.Repository
	rates   *coupon.Table
	orders  order.Store
	close   func()
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	d, err := buildBackend(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer d.close()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	manager := checkout.NewManager(
		storage.NewCartAdapter(d.kv, lg.Named("cart")),
		checkout.SessionConfig{
			Catalog: d.catalog,
			Rates:   d.rates,
			Orders:  d.orders,
			Journal: storage.NewJournalAdapter(d.kv, lg.Named("journal")),
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api.NewHandler(manager, d.catalog, d.orders).Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "X-User-ID", "X-User-Email"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// buildBackend assembles the persistence layer for the configured storage
// backend and registers its readiness checks.
func buildBackend(ctx context.Context, lg *zap.Logger, cfg *Config, healthSvc *health.Health) (*deps, error) {
	embedded, err := catalog.NewMemoryFromJSON(db.Products)
	if err != nil {
		return nil, errors.Wrap(err, "load embedded catalog")
	}

	switch cfg.Storage {
	case StorageMemory:
		kv := memory.New()
		return &deps{
			kv:      kv,
			catalog: embedded,
			rates:   coupon.Default(),
			orders:  order.NewKVStore(kv),
			close:   func() {},
		}, nil

	case StorageRedis:
		kv, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		healthSvc.AddReadinessCheck("redis", 5*time.Second, kv.Ping)
		return &deps{
			kv:      kv,
			catalog: embedded,
			rates:   coupon.Default(),
			orders:  order.NewKVStore(kv),
			close: func() {
				if err := kv.Close(); err != nil {
					lg.Warn("Close redis", zap.Error(err))
				}
			},
		}, nil

	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}

		cat := postgres.NewCatalogRepository(pool)
		products, err := embedded.List(ctx)
		if err == nil {
			err = cat.SeedProducts(ctx, products)
		}
		if err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "seed catalog")
		}

		rates, err := postgres.NewCouponRepository(pool).ListRates(ctx)
		if err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "load coupon rates")
		}
		table, err := coupon.NewTable(rates)
		if err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "build coupon table")
		}

		healthSvc.AddReadinessCheck("postgres", 5*time.Second, pool.Ping)
		return &deps{
			kv:      postgres.NewKV(pool),
			catalog: cat,
			rates:   table,
			orders:  postgres.NewOrderStore(pool),
			close:   pool.Close,
		}, nil

	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
