// Package main provides the Reserva projection worker.
//
// The worker drains the event queue, projects each recorded event into the
// query-side tables and keeps the projection-lag indicator current. Metrics
// are exposed over HTTP for scraping.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reserva-io/reserva/internal/awsclient"
	"github.com/reserva-io/reserva/internal/config"
	"github.com/reserva-io/reserva/internal/projection"
	"github.com/reserva-io/reserva/internal/queue"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "projector"

	defaultMetricsPort   = 9090
	metricsReadTimeout   = 10 * time.Second
	metricsWriteTimeout  = 10 * time.Second
	metricsShutdownGrace = 5 * time.Second
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	logger.Info("Starting Reserva projection worker",
		slog.String("service", name),
		slog.String("version", version),
	)

	appConfig := config.LoadConfig()
	if appConfig.SQSQueueURL == "" {
		logger.Error("SQS_QUEUE_URL must be configured for the projection worker")
		os.Exit(1)
	}

	sess, err := awsclient.NewSession(appConfig)
	if err != nil {
		logger.Error("Failed to create AWS session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	receiver := queue.NewSQSQueue(awsclient.NewSQS(sess, appConfig.SQSEndpoint), appConfig.SQSQueueURL)

	store := projection.NewDynamoStore(awsclient.NewDynamoDB(sess, appConfig.DynamoEndpoint), projection.Tables{
		Users:        appConfig.UsersTable,
		Resources:    appConfig.ResourcesTable,
		Reservations: appConfig.ReservationsTable,
		Lag:          appConfig.ProjectionLagTable,
	})

	worker := projection.NewWorker(receiver, store, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricsServer := startMetricsServer(logger)

	logger.Info("Projection worker running",
		slog.String("queue_url", appConfig.SQSQueueURL),
	)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Projection worker failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), metricsShutdownGrace)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}

	logger.Info("Reserva projection worker stopped")
}

// startMetricsServer serves /metrics in the background.
func startMetricsServer(logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.GetEnvInt("METRICS_PORT", defaultMetricsPort)),
		Handler:      mux,
		ReadTimeout:  metricsReadTimeout,
		WriteTimeout: metricsWriteTimeout,
	}

	go func() {
		logger.Info("Metrics server listening", slog.String("address", server.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}
