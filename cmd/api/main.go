package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/infrastructure/postgres"
	"fintrack/internal/models"
	"fintrack/internal/shared/config"
	"fintrack/internal/shared/telemetry"
	"fintrack/internal/truelayer"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load .env if present (development convenience)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	// Initialize telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  "9090",
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Printf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	// Initialize dependencies (database, TrueLayer client, handlers)
	deps, err := NewDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Provider discovery is fail-fast: a half-known provider catalog is
	// worse than refusing to start.
	if err := fetchNewProviders(ctx, deps.Client, deps.ProviderRepo); err != nil {
		return fmt.Errorf("failed to fetch providers: %w", err)
	}

	// Start background sync
	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()
	if cfg.Sync.Enabled {
		go deps.Scheduler.Run(syncCtx)
	} else {
		log.Println("Background sync is disabled")
	}

	// Start HTTP server
	srv := StartServer(cfg.Server.Host+":"+cfg.Server.Port, SetupRoutes(deps))

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopSync()
	GracefulShutdown(srv, 30*time.Second)
	return nil
}

// fetchNewProviders stores any provider the aggregator supports that is not
// yet known locally. Existing rows (and their credentials) are untouched.
func fetchNewProviders(ctx context.Context, client *truelayer.Client, repo *postgres.ProviderRepository) error {
	providers, err := client.SupportedProviders(ctx)
	if err != nil {
		return err
	}

	for _, p := range providers {
		created, err := repo.Insert(ctx, &models.Provider{
			ID:          p.ProviderID,
			DisplayName: p.DisplayName,
			LogoURL:     p.LogoURL,
		})
		if err != nil {
			return err
		}
		if created {
			log.Printf("new provider '%s' added", p.ProviderID)
		}
	}

	return nil
}
