package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/addresses"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/cart"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/config"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/database"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/messaging"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/orders"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/saved"
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

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront", "0.1.0")
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

	producer := messaging.NewProducer(cfg.Kafka.Brokers, domain.TopicOrderPlaced)
	defer func() { _ = producer.Close() }()

	cartHandler := cart.NewHandler(cart.NewCartRepository(db), logger)
	orderHandler := orders.NewHandler(orders.NewOrderRepository(db), producer, logger)
	savedHandler := saved.NewHandler(saved.NewSavedRepository(db), logger)
	addressHandler := addresses.NewHandler(addresses.NewAddressRepository(db), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", cartHandler.HandleGet)
	mux.HandleFunc("POST /cart/items", cartHandler.HandleAdd)
	mux.HandleFunc("PATCH /cart/items/{itemId}", cartHandler.HandleUpdateQuantity)
	mux.HandleFunc("DELETE /cart/items/{itemId}", cartHandler.HandleRemove)
	mux.HandleFunc("DELETE /cart", cartHandler.HandleClear)

	mux.HandleFunc("GET /orders", orderHandler.HandleList)
	mux.HandleFunc("POST /orders", orderHandler.HandlePlace)
	mux.HandleFunc("GET /orders/{id}", orderHandler.HandleGet)
	mux.HandleFunc("POST /orders/{id}/cancel", orderHandler.HandleCancel)
	mux.HandleFunc("PATCH /orders/{id}/status", orderHandler.HandleUpdateStatus)
	mux.HandleFunc("PATCH /orders/{id}/payment", orderHandler.HandleUpdatePayment)

	mux.HandleFunc("GET /saved", savedHandler.HandleList)
	mux.HandleFunc("POST /saved", savedHandler.HandleSave)
	mux.HandleFunc("GET /saved/check/{productId}", savedHandler.HandleIsSaved)
	mux.HandleFunc("DELETE /saved/{id}", savedHandler.HandleUnsave)

	mux.HandleFunc("GET /addresses", addressHandler.HandleList)
	mux.HandleFunc("POST /addresses", addressHandler.HandleCreate)
	mux.HandleFunc("DELETE /addresses/{id}", addressHandler.HandleDelete)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting storefront service", "port", cfg.Server.Port)
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
