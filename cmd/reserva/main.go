// Package main provides the Reserva command API service.
//
// The service accepts reservation commands over HTTP, guards them with an
// idempotency gate, executes them against the S3-backed event store and
// publishes accepted events for the projection worker.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/reserva-io/reserva/internal/api"
	"github.com/reserva-io/reserva/internal/api/middleware"
	"github.com/reserva-io/reserva/internal/auth"
	"github.com/reserva-io/reserva/internal/awsclient"
	"github.com/reserva-io/reserva/internal/config"
	"github.com/reserva-io/reserva/internal/eventstore"
	"github.com/reserva-io/reserva/internal/idempotency"
	"github.com/reserva-io/reserva/internal/projection"
	"github.com/reserva-io/reserva/internal/queue"
	"github.com/reserva-io/reserva/internal/runner"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "reserva"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting Reserva command API service",
		slog.String("service", name),
		slog.String("version", version),
	)

	appConfig := config.LoadConfig()
	if err := appConfig.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Loaded configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("aws_region", appConfig.AWSRegion),
		slog.String("events_bucket", appConfig.S3BucketEvents),
		slog.Int("version_conflict_max_retries", appConfig.VersionConflictMaxRetries),
	)

	sess, err := awsclient.NewSession(appConfig)
	if err != nil {
		logger.Error("Failed to create AWS session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := eventstore.NewS3Store(
		awsclient.NewS3(sess, appConfig.S3Endpoint),
		appConfig.S3BucketEvents,
		logger,
	)

	var publisher queue.Publisher = queue.NoopPublisher{}

	if appConfig.SQSQueueURL != "" {
		publisher = queue.NewSQSQueue(awsclient.NewSQS(sess, appConfig.SQSEndpoint), appConfig.SQSQueueURL)
		logger.Info("Event publishing enabled", slog.String("queue_url", appConfig.SQSQueueURL))
	} else {
		logger.Warn("SQS_QUEUE_URL not configured - event publishing disabled")
	}

	dynamo := awsclient.NewDynamoDB(sess, appConfig.DynamoEndpoint)

	gate := idempotency.NewGate(idempotency.NewDynamoStore(dynamo, appConfig.IdempotencyTable), logger)

	reads := projection.NewDynamoStore(dynamo, projection.Tables{
		Users:        appConfig.UsersTable,
		Resources:    appConfig.ResourcesTable,
		Reservations: appConfig.ReservationsTable,
		Lag:          appConfig.ProjectionLagTable,
	})

	issuer, err := auth.NewTokenIssuer(appConfig.JWTSecret)
	if err != nil {
		logger.Error("Failed to create token issuer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rateLimitConfig := middleware.LoadRateLimitConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(rateLimitConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", rateLimitConfig.GlobalRPS),
		slog.Int("client_rps", rateLimitConfig.ClientRPS),
		slog.Int("max_clients", rateLimitConfig.MaxClients),
	)

	server := api.NewServer(serverConfig, api.Dependencies{
		Runner:      runner.New(store, publisher, appConfig, logger),
		Gate:        gate,
		Reads:       reads,
		Issuer:      issuer,
		Hasher:      auth.BcryptHasher{},
		RateLimiter: rateLimiter,
		AppConfig:   appConfig,
	})

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("Reserva command API service stopped")
}
