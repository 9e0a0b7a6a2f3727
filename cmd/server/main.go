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

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"idverifier/internal/asset"
	"idverifier/internal/authz"
	"idverifier/internal/ledger/sweeper"
	"idverifier/internal/platform/config"
	"idverifier/internal/platform/httpserver"
	"idverifier/internal/platform/logger"
	platformmetrics "idverifier/internal/platform/metrics"
	"idverifier/internal/verifier/handler"
	verifiermetrics "idverifier/internal/verifier/metrics"
	"idverifier/internal/verifier/models"
	"idverifier/internal/verifier/service"
	"idverifier/pkg/platform/httputil"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("idverifier stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.DefaultRegisterer

	sink, closeSink, err := buildEventSink(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer closeSink()

	backend, err := openBackend(ctx, cfg, log, sink)
	if err != nil {
		return err
	}
	defer backend.close()

	token := asset.NewToken(cfg.Registry.AssetAddress)
	gate, err := service.NewPaymentGate(models.PaymentMode(cfg.Registry.PaymentPolicy), token,
		cfg.Registry.PaymentAmount, cfg.Registry.Retention)
	if err != nil {
		return err
	}
	svc := service.New(backend.host, token, authz.NewSignatureAuthorizer(),
		service.WithLogger(log),
		service.WithMetrics(verifiermetrics.New(reg)),
		service.WithPaymentGate(gate),
		service.WithPaymentAmount(cfg.Registry.PaymentAmount),
		service.WithRetention(cfg.Registry.Retention),
	)
	if err := bootstrapAuthority(ctx, svc, cfg); err != nil {
		return err
	}

	httpMetrics := platformmetrics.New(reg)
	router := chi.NewRouter()
	router.Get("/health", healthHandler(backend.health))
	router.Handle("/metrics", httpMetrics.Handler())
	handler.New(svc, log,
		handler.WithMetrics(httpMetrics),
		handler.WithDevRoutes(cfg.Server.IsDev()),
	).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting idverifier",
			"addr", cfg.Server.Addr,
			"store", cfg.Store,
			"payment_policy", cfg.Registry.PaymentPolicy,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if backend.evictor != nil {
		w := sweeper.NewWorker(backend.evictor, cfg.Registry.SweepInterval,
			sweeper.WithLogger(log),
			sweeper.WithMetrics(sweeper.NewMetrics(reg)),
		)
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// bootstrapAuthority sets the configured admin on a fresh ledger. An
// existing authority is left untouched.
func bootstrapAuthority(ctx context.Context, svc *service.Service, cfg config.Config) error {
	admin := cfg.Registry.AdminAddress
	if admin == (common.Address{}) {
		return nil
	}
	err := svc.Initialize(ctx, admin)
	if err == nil || errors.Is(err, models.ErrAlreadyInitialized) {
		return nil
	}
	return fmt.Errorf("initialize registry: %w", err)
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
