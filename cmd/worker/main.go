package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/config"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/messaging"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/telemetry"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireKafka(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	emailServiceURL := os.Getenv("EMAIL_SERVICE_URL")
	if emailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	storefrontServiceURL := os.Getenv("STOREFRONT_SERVICE_URL")
	if storefrontServiceURL == "" {
		logger.Error("STOREFRONT_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	orderConsumer := messaging.NewConsumer(cfg.Kafka.Brokers, domain.TopicOrderPlaced, "storefront-notifications")
	defer func() { _ = orderConsumer.Close() }()

	donationConsumer := messaging.NewConsumer(cfg.Kafka.Brokers, domain.TopicDonationFulfilled, "storefront-notifications")
	defer func() { _ = donationConsumer.Close() }()

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	notificationHandler := worker.NewNotificationHandler(emailServiceURL, storefrontServiceURL, httpClient, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", cfg.Kafka.Brokers)

	errCh := make(chan error, 2)
	go func() {
		errCh <- orderConsumer.Consume(ctx, notificationHandler.HandleOrderPlaced)
	}()
	go func() {
		errCh <- donationConsumer.Consume(ctx, notificationHandler.HandleDonationFulfilled)
	}()

	err = <-errCh
	cancel()
	<-errCh

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("consumers stopped")
}
