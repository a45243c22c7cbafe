package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"metaquery/internal/domain"
	"metaquery/internal/domain/shop"
	"metaquery/internal/infrastructure/cache"
	"metaquery/internal/infrastructure/celeval"
	v1 "metaquery/internal/infrastructure/http/v1"
	"metaquery/internal/infrastructure/metrics"
	"metaquery/internal/metadata"
	"metaquery/pkg/logger"
)

type serveOptions struct {
	addr     string
	useCEL   bool
	seed     bool
	redis    string
	cacheTTL time.Duration
}

func newServeCmd(opts *options) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve criteria queries over the shop entities via HTTP",
		Long: `Serves GET /api/v1/{categories,products,customers,addresses}[/count]
with criteria in the query string, plus /health/* and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts, so)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&so.addr, "addr", ":"+getEnv("APP_PORT", "8080"), "listen address")
	flags.BoolVar(&so.useCEL, "cel", false, "evaluate memory queries with CEL programs")
	flags.BoolVar(&so.seed, "seed", false, "load the sample data into the database first")
	flags.StringVar(&so.redis, "redis", getEnv("REDIS_ADDR", ""), "Redis address for the result cache (empty disables caching)")
	flags.DurationVar(&so.cacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 5*time.Minute), "lifetime of cached results")
	return cmd
}

func serve(ctx context.Context, opts *options, so *serveOptions) error {
	log := logger.FromContext(ctx)

	b, err := openBackend(ctx, opts.driver, opts.dsn)
	if err != nil {
		return err
	}
	defer b.Close()
	if so.useCEL {
		b.cel = celeval.New()
	}
	if so.seed {
		if err := b.seed(ctx); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg)

	var rdb redis.UniversalClient
	if so.redis != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:         so.redis,
			Password:     getEnv("REDIS_PASSWORD", ""),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		defer func() { _ = rdb.Close() }()

		if b.pool != nil {
			inv := cache.NewInvalidator(b.pool.Pool, rdb, "",
				shop.EntityCategory, shop.EntityProduct, shop.EntityCustomer, shop.EntityAddress)
			inv.Start(ctx)
			defer inv.Stop()
		}
	}

	data := shop.SampleData()
	sw := &shopWiring{opts: opts, b: b, rdb: rdb, ttl: so.cacheTTL, observer: recorder}
	categories, err := wireService(sw, shop.CategoryDef(), data.Categories)
	if err != nil {
		return err
	}
	products, err := wireService(sw, shop.ProductDef(), data.Products)
	if err != nil {
		return err
	}
	customers, err := wireService(sw, shop.CustomerDef(), data.Customers)
	if err != nil {
		return err
	}
	addresses, err := wireService(sw, shop.AddressDef(), data.Addresses)
	if err != nil {
		return err
	}

	router := v1.NewRouter(v1.RouterConfig{
		Logger:   log,
		Backend:  b,
		Gatherer: reg,
		Entities: []v1.EntityRoute{
			v1.Route("categories", categories),
			v1.Route("products", products),
			v1.Route("customers", customers),
			v1.Route("addresses", addresses),
		},
	})

	server := &http.Server{
		Addr:         so.addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", so.addr, "driver", b.driver, "cache", so.redis != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// shopWiring holds what every shop service is built from.
type shopWiring struct {
	opts     *options
	b        *backend
	rdb      redis.UniversalClient
	ttl      time.Duration
	observer domain.Observer
}

func wireService[R any](sw *shopWiring, def metadata.EntityDef, records []R) (*domain.QueryService[R], error) {
	store, err := shopStore(sw.b, def, records)
	if err != nil {
		return nil, err
	}
	if sw.rdb != nil {
		cfg := cache.DefaultConfig()
		cfg.TTL = sw.ttl
		store, err = cache.NewStore(store, sw.rdb, cfg)
		if err != nil {
			return nil, err
		}
	}
	return newService(sw.opts, def, store, sw.observer), nil
}
