package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/config"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/database"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/donations"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/messaging"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireDatabase(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if err := cfg.RequireKafka(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "donations", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	db, err := database.Connect(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	producer := messaging.NewProducer(cfg.Kafka.Brokers, domain.TopicDonationFulfilled)
	defer func() { _ = producer.Close() }()

	handler := donations.NewHandler(donations.NewDonationRepository(db), producer, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /donations/requests", handler.HandleList)
	mux.HandleFunc("POST /donations/requests", handler.HandleSubmit)
	mux.HandleFunc("GET /donations/requests/{id}", handler.HandleGet)
	mux.HandleFunc("POST /donations/requests/{id}/accept", handler.HandleAccept)
	mux.HandleFunc("PATCH /donations/requests/{id}/status", handler.HandleUpdateStatus)
	mux.HandleFunc("GET /donations/fulfillments", handler.HandleListFulfillments)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting donations service", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
