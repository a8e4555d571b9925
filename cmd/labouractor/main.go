// labouractor serves the per-labour actor system: command submission, read
// queries, checkout webhook receipt, and real-time event delivery over
// WebSocket.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fernlabour/labour-actor/pkg/actor"
	"github.com/fernlabour/labour-actor/pkg/api"
	"github.com/fernlabour/labour-actor/pkg/config"
	"github.com/fernlabour/labour-actor/pkg/database"
	"github.com/fernlabour/labour-actor/pkg/eventstore"
	"github.com/fernlabour/labour-actor/pkg/external"
	"github.com/fernlabour/labour-actor/pkg/processmanager"
	"github.com/fernlabour/labour-actor/pkg/projection"
	"github.com/fernlabour/labour-actor/pkg/scheduler"
	"github.com/fernlabour/labour-actor/pkg/version"
	"github.com/fernlabour/labour-actor/pkg/webhook"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting labouractor", "version", version.Full())

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	slog.Info("connected to PostgreSQL database")

	store := eventstore.NewPGStore(dbClient.Pool)

	syncProcessor := projection.NewProcessor([]projection.Projector{
		projection.NewLabourProjector(dbClient.Pool),
		projection.NewContractionProjector(dbClient.Pool),
		projection.NewSubscriptionProjector(dbClient.Pool),
		projection.NewSubscriptionTokenProjector(dbClient.Pool),
		projection.NewLabourUpdateProjector(dbClient.Pool),
	}, projection.NewPGCheckpointStore(dbClient.Pool), cfg.BatchSize)

	readModelClient := external.NewReadModelClient(getEnv("READMODEL_BASE_URL", "http://readmodel.internal"))
	asyncProcessor := projection.NewProcessor([]projection.Projector{
		projection.NewExternalProjector(readModelClient),
	}, projection.NewPGCheckpointStore(dbClient.Pool), cfg.BatchSize)

	ledger := processmanager.NewPGLedger(dbClient.Pool)

	host := actor.NewHost(actor.Deps{
		Store:              store,
		SyncProcessor:      syncProcessor,
		AsyncProcessor:     asyncProcessor,
		Thresholds:         cfg.PhaseThresholds,
		CooldownSeconds:    cfg.AnnouncementCooldownSeconds,
		InternalUserPrefix: cfg.InternalUserPrefix,
	})

	// The executor issues internal commands back through the host, so the
	// process manager can only be wired once the host exists.
	executor := processmanager.NewDefaultExecutor(
		external.NewUserClient(getEnv("ACCOUNTS_BASE_URL", "http://accounts.internal")),
		external.NewNotificationClient(getEnv("NOTIFICATIONS_BASE_URL", "http://notifications.internal")),
		host,
		processmanager.CSPRNGTokenGenerator{},
	)
	host.SetProcessManager(&processmanager.Manager{
		Store:       store,
		Ledger:      ledger,
		Executor:    executor,
		MaxAttempts: cfg.MaxRetryAttempts,
		BatchSize:   cfg.BatchSize,
	})

	sched := scheduler.New(host)
	host.SetRearmer(sched)
	defer sched.Stop()

	connManager := api.NewConnectionManager(store, host, 10*time.Second)
	host.SetBroadcaster(connManager)

	authClient := api.NewHTTPAuthClient(getEnv("AUTH_VALIDATE_URL", "http://auth.internal/validate"))
	webhookVerifier := webhook.NewVerifier(cfg.WebhookSecret).WithTolerance(cfg.WebhookTolerance)

	server := api.NewServer(cfg, dbClient, host, connManager, authClient, webhookVerifier)

	httpPort := getEnv("HTTP_PORT", cfg.HTTPPort)
	ln, err := net.Listen("tcp", ":"+httpPort)
	if err != nil {
		log.Fatalf("Failed to bind HTTP port %s: %v", httpPort, err)
	}

	go func() {
		slog.Info("labouractor HTTP server listening", "port", httpPort)
		if err := server.StartWithListener(ln); err != nil {
			slog.Error("HTTP server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}
