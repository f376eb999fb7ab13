package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cartapp "github.com/dwikikusuma/okhati-storefront/internal/cart/app"
	carthttp "github.com/dwikikusuma/okhati-storefront/internal/cart/httpapi"
	cartadapter "github.com/dwikikusuma/okhati-storefront/internal/cart/infra/adapter"
	"github.com/dwikikusuma/okhati-storefront/internal/cart/infra/kv"

	catalogapp "github.com/dwikikusuma/okhati-storefront/internal/catalog/app"
	cataloghttp "github.com/dwikikusuma/okhati-storefront/internal/catalog/httpapi"
	"github.com/dwikikusuma/okhati-storefront/internal/catalog/infra/rest"

	checkoutapp "github.com/dwikikusuma/okhati-storefront/internal/checkout/app"
	checkouthttp "github.com/dwikikusuma/okhati-storefront/internal/checkout/httpapi"
	checkoutadapter "github.com/dwikikusuma/okhati-storefront/internal/checkout/infra/adapter"
	"github.com/dwikikusuma/okhati-storefront/internal/checkout/infra/gateway"

	sessionapp "github.com/dwikikusuma/okhati-storefront/internal/session/app"
	sessionhttp "github.com/dwikikusuma/okhati-storefront/internal/session/httpapi"

	"github.com/dwikikusuma/okhati-storefront/internal/storage"
	"github.com/dwikikusuma/okhati-storefront/internal/storage/memory"
	storagesqlite "github.com/dwikikusuma/okhati-storefront/internal/storage/sqlite"

	"github.com/dwikikusuma/okhati-storefront/pkg/config"
	"github.com/dwikikusuma/okhati-storefront/pkg/httpclient"
	"github.com/dwikikusuma/okhati-storefront/pkg/httpx"
	"github.com/dwikikusuma/okhati-storefront/pkg/logger"
	"github.com/dwikikusuma/okhati-storefront/pkg/shutdown"
	"github.com/dwikikusuma/okhati-storefront/pkg/sqlite"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "storefront", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	kvStore, db := mustStorage(ctx, log, cfg.DataPath)
	if db != nil {
		defer db.Close()
	}

	hc := httpclient.New(cfg.HTTPTimeout.Duration)

	// Catalog
	catalogClient, err := rest.NewClient(cfg.CatalogURL, hc)
	if err != nil {
		log.Error("catalog client", slog.Any("err", err))
		os.Exit(1)
	}
	catalogSvc := catalogapp.NewService(catalogClient, cfg.StockCacheTTL.Duration, 10)

	// Cart
	catalogReader := cartadapter.NewCatalogServiceReader(catalogSvc)
	cartSvc, err := cartapp.NewService(kv.NewLineStore(kvStore), catalogReader, catalogReader, cfg.SessionCacheSize,
		cartapp.WithChangeHook(func(c cartapp.Change) {
			log.Debug("cart changed",
				slog.String("session_id", c.SessionID),
				slog.Int("lines", len(c.Lines)),
				slog.Uint64("version", c.Version),
			)
		}),
	)
	if err != nil {
		log.Error("cart service", slog.Any("err", err))
		os.Exit(1)
	}

	// Session
	sessionSvc := sessionapp.NewService(kvStore)

	// Checkout (adapters)
	checkoutSvc, err := checkoutapp.NewService(
		checkoutadapter.NewCartServiceReader(cartSvc),
		checkoutadapter.NewSessionUserReader(sessionSvc),
		gateway.NewClient(cfg.PaymentURL, hc),
		checkoutapp.Shipping{City: cfg.Shipping.City, Country: cfg.Shipping.Country, Zip: cfg.Shipping.Zip},
		cfg.SessionCacheSize,
		log,
	)
	if err != nil {
		log.Error("checkout service", slog.Any("err", err))
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", httpx.Health)
	r.Get("/readyz", ready(db))
	r.Group(func(r chi.Router) {
		r.Use(httpx.Session)
		cataloghttp.NewHandler(catalogSvc, log).Routes(r)
		carthttp.NewHandler(cartSvc, log).Routes(r)
		checkouthttp.NewHandler(checkoutSvc, log).Routes(r)
		sessionhttp.NewHandler(sessionSvc, log).Routes(r)
	})

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              httpAddr,
		Handler:           otelhttp.NewHandler(r, "storefront"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * cfg.HTTPTimeout.Duration,
		IdleTimeout:       60 * time.Second,
	}

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("listen failed", slog.Any("err", err), slog.String("addr", grpcAddr))
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("storefront", healthpb.HealthCheckResponse_SERVING)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", httpAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		log.Info("grpc health starting", slog.String("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("grpc serve error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")
	healthSrv.Shutdown()

	err = shutdown.Drain(10*time.Second, server.Shutdown, func(ctx context.Context) error {
		return stopGRPC(ctx, grpcServer)
	})
	if err != nil {
		log.Error("shutdown error", slog.Any("err", err))
	}

	wg.Wait()
	log.Info("bye")
}

// mustStorage opens the sqlite-backed client storage, or an in-memory one
// when no data path is configured.
func mustStorage(ctx context.Context, log *slog.Logger, path string) (storage.Store, *sql.DB) {
	if path == "" {
		log.Warn("DATA_PATH not set, carts are kept in memory")
		return memory.NewStore(), nil
	}
	db, err := sqlite.Open(sqlite.Config{Path: path})
	if err != nil {
		log.Error("db open failed", slog.Any("err", err))
		os.Exit(1)
	}
	st, err := storagesqlite.NewStore(ctx, db)
	if err != nil {
		log.Error("storage init failed", slog.Any("err", err))
		os.Exit(1)
	}
	return st, db
}

func ready(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func stopGRPC(ctx context.Context, s *grpc.Server) error {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	case <-stopped:
		return nil
	}
}
