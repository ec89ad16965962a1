package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/monistake/monistake-backend/internal/api"
	"github.com/monistake/monistake-backend/internal/config"
	"github.com/monistake/monistake-backend/internal/jobs"
	"github.com/monistake/monistake-backend/internal/log"
	"github.com/monistake/monistake-backend/internal/metrics"
	"github.com/monistake/monistake-backend/internal/onchain"
	"github.com/monistake/monistake-backend/internal/store"
	"github.com/monistake/monistake-backend/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting MoniStake API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"chain", cfg.Chain.Name,
		"chain_id", cfg.Chain.ChainID,
		"staking", cfg.Contracts.Staking().Hex(),
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("monistake-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Setup cache; an empty address keeps everything in process
	cache, err := store.NewCache(cfg.Cache.RedisAddr, logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		logger.Fatalw("Cache ping failed", "error", err)
	}
	logger.Infow("Cache ready", "in_memory", cache.IsInMemoryMode())

	// Root context for background services
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// The server never signs: writes arrive already signed by the browser wallet
	dialCtx, dialCancel := context.WithTimeout(rootCtx, 30*time.Second)
	chainClient, err := onchain.Dial(dialCtx, cfg.Chain.RPCURL, onchain.ClientOptions{
		ChainID: cfg.Chain.ChainID,
	}, logger)
	dialCancel()
	if err != nil {
		logger.Fatalw("Failed to connect to chain", "error", err, "rpc", cfg.Chain.RPCURL)
	}
	defer chainClient.Close()
	logger.Infow("Chain connection established", "rpc", cfg.Chain.RPCURL)

	reader := onchain.NewReader(chainClient, cache, cfg, logger, metricsObj)
	dispatcher := onchain.NewDispatcher(rootCtx, chainClient, reader, cache, cfg, logger, metricsObj)

	// Setup WebSocket hub and SSE handler
	wsHub := ws.NewHub(cache, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	sseHandler := ws.NewSSEHandler(cache, logger)
	go wsHub.Run(rootCtx)

	refresher := jobs.NewPoolRefresher(reader, logger, jobs.PoolRefresherConfig{
		Interval: cfg.Staking.RefreshInterval,
	})
	go func() {
		logger.Infow("Starting pool refresher", "interval", cfg.Staking.RefreshInterval)
		if err := refresher.Start(rootCtx); err != nil && err != context.Canceled {
			logger.Errorw("Pool refresher error", "error", err)
		}
	}()

	// Setup API handler and middleware
	handler := api.NewHandler(reader, dispatcher, chainClient, wsHub, sseHandler, cache, cfg, logger)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// WriteTimeout stays zero so SSE and WebSocket streams are not cut off;
	// the timeout middleware bounds the regular routes.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		refresher.Stop()
		rootCancel()
		dispatcher.Close()

		logger.Infow("Server stopped")
	}
}
