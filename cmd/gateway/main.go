package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/auth"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/config"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/gateway"
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
	if err := cfg.RequireRedis(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	catalogServiceURL := os.Getenv("CATALOG_SERVICE_URL")
	if catalogServiceURL == "" {
		logger.Error("CATALOG_SERVICE_URL is required")
		os.Exit(1)
	}
	storefrontServiceURL := os.Getenv("STOREFRONT_SERVICE_URL")
	if storefrontServiceURL == "" {
		logger.Error("STOREFRONT_SERVICE_URL is required")
		os.Exit(1)
	}
	donationsServiceURL := os.Getenv("DONATIONS_SERVICE_URL")
	if donationsServiceURL == "" {
		logger.Error("DONATIONS_SERVICE_URL is required")
		os.Exit(1)
	}

	sessions, err := auth.NewRedisSessionStore(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect session store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sessions.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := gateway.NewHandler(
		gateway.NewServiceProxy(catalogServiceURL, httpClient),
		gateway.NewServiceProxy(storefrontServiceURL, httpClient),
		gateway.NewServiceProxy(donationsServiceURL, httpClient),
		logger,
	)

	// Buyer surfaces require a session; catalog reads and donation submission
	// are public, with the backing services rejecting writes that arrive
	// without an identity.
	authed := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(sessions, true, logger, telemetry.WithHTTPRoute(h))
	}
	public := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(sessions, false, logger, telemetry.WithHTTPRoute(h))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)

	mux.Handle("GET /products", public(handler.HandleCatalog))
	mux.Handle("POST /products", public(handler.HandleCatalog))
	mux.Handle("GET /products/{id}", public(handler.HandleCatalog))
	mux.Handle("PUT /products/{id}", public(handler.HandleCatalog))
	mux.Handle("DELETE /products/{id}", public(handler.HandleCatalog))

	mux.Handle("GET /cart", authed(handler.HandleStorefront))
	mux.Handle("POST /cart/items", authed(handler.HandleStorefront))
	mux.Handle("PATCH /cart/items/{itemId}", authed(handler.HandleStorefront))
	mux.Handle("DELETE /cart/items/{itemId}", authed(handler.HandleStorefront))
	mux.Handle("DELETE /cart", authed(handler.HandleStorefront))

	mux.Handle("GET /orders", authed(handler.HandleStorefront))
	mux.Handle("POST /orders", authed(handler.HandleStorefront))
	mux.Handle("GET /orders/{id}", authed(handler.HandleStorefront))
	mux.Handle("POST /orders/{id}/cancel", authed(handler.HandleStorefront))
	mux.Handle("PATCH /orders/{id}/status", authed(handler.HandleStorefront))
	mux.Handle("PATCH /orders/{id}/payment", authed(handler.HandleStorefront))

	mux.Handle("GET /saved", authed(handler.HandleStorefront))
	mux.Handle("POST /saved", authed(handler.HandleStorefront))
	mux.Handle("GET /saved/check/{productId}", authed(handler.HandleStorefront))
	mux.Handle("DELETE /saved/{id}", authed(handler.HandleStorefront))

	mux.Handle("GET /addresses", authed(handler.HandleStorefront))
	mux.Handle("POST /addresses", authed(handler.HandleStorefront))
	mux.Handle("DELETE /addresses/{id}", authed(handler.HandleStorefront))

	mux.Handle("GET /donations/requests", public(handler.HandleDonations))
	mux.Handle("POST /donations/requests", public(handler.HandleDonations))
	mux.Handle("GET /donations/requests/{id}", public(handler.HandleDonations))
	mux.Handle("POST /donations/requests/{id}/accept", authed(handler.HandleDonations))
	mux.Handle("PATCH /donations/requests/{id}/status", authed(handler.HandleDonations))
	mux.Handle("GET /donations/fulfillments", authed(handler.HandleDonations))

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: otelhttp.NewHandler(mux, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting gateway service", "port", cfg.Server.Port)
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
