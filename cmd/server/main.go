// Package main is the entry point for the Arcadia auth server. It loads
// configuration, establishes database connections, wires together the
// auth, wallet, and inventory plugins, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberforge/arcadia/internal/account"
	"github.com/emberforge/arcadia/internal/app"
	"github.com/emberforge/arcadia/internal/config"
	"github.com/emberforge/arcadia/internal/database"
	"github.com/emberforge/arcadia/internal/plugins/auth"
	"github.com/emberforge/arcadia/internal/plugins/inventory"
	"github.com/emberforge/arcadia/internal/plugins/wallet"
	"github.com/emberforge/arcadia/internal/session"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting Arcadia auth server",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	// --- Connect to MariaDB ---
	db, err := database.NewMariaDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to MariaDB", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to MariaDB")

	// --- Run Migrations ---
	if err := database.RunMigrations(db, "migrations"); err != nil {
		slog.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Seed the marketplace catalog so starter-bundle grants always resolve.
	if err := database.SeedCatalog(context.Background(), db); err != nil {
		slog.Error("failed to seed catalog", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Connect to Redis ---
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	// --- Load Session Signing Keys ---
	keys, err := session.LoadKeyPair(cfg.Session.PrivateKeyPath, cfg.Session.PublicKeyPath)
	if err != nil {
		slog.Error("failed to load session keys", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Wire Plugins ---
	accounts := account.NewRepository(db)
	profiles := account.NewProfileRepository(db)

	issuer := session.NewIssuer(keys.Private, accounts, cfg.Session.TokenTTL)
	validator := session.NewValidator(keys.Public, accounts)

	inventoryRepo := inventory.NewRepository(db)
	inventorySvc := inventory.NewService(inventoryRepo)

	authSvc := auth.NewService(accounts, profiles, issuer, validator)
	walletSvc := wallet.NewService(accounts, profiles, issuer, inventorySvc, cfg.Session.NonceTTL)

	handlers := app.Handlers{
		Auth:      auth.NewHandler(authSvc),
		Wallet:    wallet.NewHandler(walletSvc),
		Inventory: inventory.NewHandler(inventorySvc),
		Validator: validator,
	}

	// --- Create Application ---
	application := app.New(cfg, db, rdb)
	application.RegisterRoutes(handlers)

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	slog.SetDefault(slog.New(handler))
}
