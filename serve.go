package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"site-registry/internal/audit"
	"site-registry/internal/auth"
	"site-registry/internal/database"
	"site-registry/internal/logging"
	masterdataapp "site-registry/internal/masterdata/application"
	masterdatarepo "site-registry/internal/masterdata/infrastructure/postgres"
	masterdatahttp "site-registry/internal/masterdata/interfaces/http"
	"site-registry/internal/observability/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.DatabaseURL, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := migrateUp(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
	}

	metrics.Init(db, logger)

	store, err := masterdatarepo.NewStore(db)
	if err != nil {
		return err
	}
	siteService, err := masterdataapp.NewSiteService(store, masterdataapp.SystemClock{Location: loc}, logger)
	if err != nil {
		return err
	}
	groupService, err := masterdataapp.NewGroupService(store, logger)
	if err != nil {
		return err
	}
	handler, err := masterdatahttp.NewHandler(siteService, groupService, audit.NewRepository(db), logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler(db))

	authMiddleware := auth.NewMiddleware([]byte(cfg.Auth.JWTSecret), auth.NewDefaultPolicy("/healthz", "/metrics"))
	if authMiddleware == nil {
		logger.Warn("auth disabled: no JWT secret configured")
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      logging.Middleware(logger, authMiddleware.Wrap(mux)),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr), zap.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("http shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
