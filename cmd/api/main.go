package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daladan/settlement/internal/audit"
	"github.com/daladan/settlement/internal/config"
	"github.com/daladan/settlement/internal/domain"
	"github.com/daladan/settlement/internal/handler"
	"github.com/daladan/settlement/internal/logging"
	"github.com/daladan/settlement/internal/middleware"
	"github.com/daladan/settlement/internal/repository"
	"github.com/daladan/settlement/internal/service/escrow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("settlement-api", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	deals := repository.NewDealRepository(db)
	escrows := repository.NewEscrowRepository(db)
	users := repository.NewUserRepository(db)
	shipments := repository.NewShipmentRepository(db)
	auditLogs := repository.NewAuditLogRepository(db)

	recorder := audit.NewRecorder(auditLogs, logger, cfg.AuditQueueSize)
	go recorder.Start(ctx)

	escrowSvc := escrow.NewService(deals, escrows, users, shipments, recorder, db)

	escrowHandler := handler.NewEscrowHandler(escrowSvc)
	healthHandler := handler.NewHealthHandler(db)

	authn := middleware.Auth(cfg.JWTSecret)
	retailerOnly := middleware.RequireRole(domain.RoleRetailer)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Live)
	mux.HandleFunc("GET /health/ready", healthHandler.Ready)
	mux.Handle("POST /api/escrow/release", authn(retailerOnly(http.HandlerFunc(escrowHandler.Release))))
	mux.Handle("POST /api/escrow/hold", authn(retailerOnly(http.HandlerFunc(escrowHandler.CreateHold))))
	mux.Handle("GET /api/escrow/{deal_id}", authn(http.HandlerFunc(escrowHandler.GetStatus)))

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop the recorder after the server so in-flight requests can still
	// enqueue their audit events, then wait for the queue to flush.
	cancel()
	recorder.Wait()

	slog.Info("server stopped")
}
