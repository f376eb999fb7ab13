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

	orderapp "github.com/dwikikusuma/okhati-storefront/internal/order/app"
	"github.com/dwikikusuma/okhati-storefront/internal/order/infra/logpub"
	"github.com/dwikikusuma/okhati-storefront/internal/order/infra/rabbitmq"
	ordersqlite "github.com/dwikikusuma/okhati-storefront/internal/order/infra/sqlite"

	paymentapp "github.com/dwikikusuma/okhati-storefront/internal/payment/app"
	paymenthttp "github.com/dwikikusuma/okhati-storefront/internal/payment/httpapi"
	"github.com/dwikikusuma/okhati-storefront/internal/payment/infra/khalti"

	"github.com/dwikikusuma/okhati-storefront/pkg/config"
	"github.com/dwikikusuma/okhati-storefront/pkg/httpclient"
	"github.com/dwikikusuma/okhati-storefront/pkg/httpx"
	"github.com/dwikikusuma/okhati-storefront/pkg/logger"
	"github.com/dwikikusuma/okhati-storefront/pkg/shutdown"
	"github.com/dwikikusuma/okhati-storefront/pkg/sqlite"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "paymentd", Env: cfg.AppEnv, Level: cfg.LogLevel, AddSource: true})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if cfg.KhaltiSecretKey == "" {
		log.Error("KHALTI_SECRET_KEY is required")
		os.Exit(1)
	}

	db, err := sqlite.Open(sqlite.Config{Path: cfg.OrdersDBPath})
	if err != nil {
		log.Error("db open failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer db.Close()

	// Order
	orderRepo, err := ordersqlite.NewOrderRepo(ctx, db)
	if err != nil {
		log.Error("order schema", slog.Any("err", err))
		os.Exit(1)
	}
	pub := mustPublisher(log, cfg.RabbitURI, cfg.OrderQueue)
	defer pub.close()
	orderSvc := orderapp.NewService(orderRepo, pub, log)

	// Payment
	khaltiClient := khalti.NewClient(cfg.KhaltiBaseURL, cfg.KhaltiSecretKey, httpclient.New(cfg.HTTPTimeout.Duration))
	paymentSvc, err := paymentapp.NewService(khaltiClient, orderSvc, cfg.BaseURL, cfg.IdempotencyTTL.Duration, log)
	if err != nil {
		log.Error("payment service", slog.Any("err", err))
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", httpx.Health)
	r.Get("/readyz", ready(db))
	paymenthttp.NewHandler(paymentSvc, log).Routes(r)

	httpAddr := fmt.Sprintf(":%d", cfg.PaymentHTTPPort)
	server := &http.Server{
		Addr:              httpAddr,
		Handler:           otelhttp.NewHandler(r, "paymentd"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * cfg.HTTPTimeout.Duration,
		IdleTimeout:       60 * time.Second,
	}

	grpcAddr := fmt.Sprintf(":%d", cfg.PaymentGRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Error("listen failed", slog.Any("err", err), slog.String("addr", grpcAddr))
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("paymentd", healthpb.HealthCheckResponse_SERVING)

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

type publisher struct {
	orderapp.Publisher
	close func()
}

// mustPublisher dials RabbitMQ when a URI is configured and otherwise logs
// order events.
func mustPublisher(log *slog.Logger, uri, queue string) publisher {
	if uri == "" {
		log.Warn("RABBITMQ_URI not set, order events are only logged")
		return publisher{Publisher: logpub.New(log), close: func() {}}
	}
	p, err := rabbitmq.Dial(uri, queue)
	if err != nil {
		log.Error("rabbitmq dial failed", slog.Any("err", err))
		os.Exit(1)
	}
	return publisher{Publisher: p, close: func() {
		if err := p.Close(); err != nil {
			log.Warn("rabbitmq close", slog.Any("err", err))
		}
	}}
}

func ready(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
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
