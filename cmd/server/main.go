package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoPolymarket/safegate/internal/chain"
	"github.com/GoPolymarket/safegate/internal/config"
	"github.com/GoPolymarket/safegate/internal/derive"
	"github.com/GoPolymarket/safegate/internal/handler"
	"github.com/GoPolymarket/safegate/internal/market"
	"github.com/GoPolymarket/safegate/internal/middleware"
	"github.com/GoPolymarket/safegate/internal/pipeline"
	"github.com/GoPolymarket/safegate/internal/pkg/logger"
	"github.com/GoPolymarket/safegate/internal/ratelimit"
	"github.com/GoPolymarket/safegate/internal/relay"
	"github.com/GoPolymarket/safegate/internal/repository"
	"github.com/GoPolymarket/safegate/internal/safe"
	"github.com/GoPolymarket/safegate/internal/service"
	"github.com/GoPolymarket/safegate/internal/store"
	"github.com/GoPolymarket/safegate/internal/transport"
)

func main() {
	logger.Init("info")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Wallet.Mnemonic == "" {
		log.Fatal("SAFEGATE_WALLET_MNEMONIC is required")
	}

	// Outbound transport, shared by the relay and CLOB clients.
	httpTransport, err := transport.NewHTTPTransport(transport.Options{
		ProxyURL:     cfg.Transport.ProxyURL,
		MaxRedirects: cfg.Transport.MaxRedirects,
		Timeout:      time.Duration(cfg.Transport.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to initialize transport: %v", err)
	}

	// Chain access and the exchange-side nonce cache.
	chainClient, err := chain.NewClient(cfg.Chain.RPCURL)
	if err != nil {
		log.Fatalf("Failed to initialize chain client: %v", err)
	}
	nonceCache, err := chain.NewNonceCache(chainClient)
	if err != nil {
		log.Fatalf("Failed to initialize nonce cache: %v", err)
	}

	// Wallet derivation and authorization.
	deriver, err := derive.NewDeriver(cfg.Wallet.Mnemonic, cfg.Chain.ChainID)
	if err != nil {
		log.Fatalf("Failed to initialize wallet deriver: %v", err)
	}
	relayClient := relay.NewClient(cfg.Relay.BaseURL, httpTransport)
	coordinator, err := safe.NewCoordinator(safe.NewDefaultPredictor(), chainClient, relayClient, safe.Options{
		PollInterval:     time.Duration(cfg.Relay.PollIntervalMs) * time.Millisecond,
		Timeout:          time.Duration(cfg.Relay.TimeoutSeconds) * time.Second,
		TransientRetries: cfg.Relay.TransientRetries,
	})
	if err != nil {
		log.Fatalf("Failed to initialize ownership coordinator: %v", err)
	}

	// Upstream admission control, one bucket per configured row.
	limiter := ratelimit.New()
	for _, b := range cfg.RateLimit {
		if b.Burst > 0 {
			limiter.RegisterBurst(b.Name, b.Max, b.Window(), b.Burst)
		} else {
			limiter.Register(b.Name, b.Max, b.Window())
		}
	}

	pipe := pipeline.New(limiter, httpTransport, cfg.Clob.BaseURL, pipeline.Credentials{
		ApiKey:     cfg.Clob.ApiKey,
		Secret:     cfg.Clob.ApiSecret,
		Passphrase: cfg.Clob.ApiPassphrase,
	}, nonceCache)

	// Wallet records: Postgres > memory, with an optional Redis read cache.
	var users store.UserStore
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg.Database.DSN)
		if err == nil {
			logger.Info("✅ Connected to PostgreSQL")
			users = repository.NewPostgresWalletRepo(db)
		} else {
			logger.Error("⚠️ Failed to connect to DB, falling back to memory", "error", err)
		}
	}
	if users == nil {
		users = repository.NewMemoryWalletRepo()
	}
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err == nil {
			logger.Info("✅ Connected to Redis")
			ttl := time.Duration(cfg.Redis.WalletTTLSeconds) * time.Second
			users = repository.NewRedisWalletCache(redisClient, users, ttl)
		} else {
			logger.Error("⚠️ Failed to connect to Redis, wallet cache disabled", "error", err)
		}
	}

	executor := service.NewExecutionService(deriver, coordinator, pipe, users)

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	var userStream *market.UserStream
	if cfg.Clob.ApiKey != "" {
		userStream = market.NewUserStream(cfg.Clob.WSURL, cfg.Clob.ApiKey, cfg.Clob.ApiSecret, cfg.Clob.ApiPassphrase)
		userStream.Start(streamCtx)
	}

	orderHandler := handler.NewOrderHandler(executor)
	walletHandler := handler.NewWalletHandler(executor)
	fillsHandler := handler.NewFillsHandler(userStream)
	idempotencyStore := middleware.NewInMemIdempotencyStore()

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "safegate"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	v1.Use(middleware.InboundRateLimit(cfg.Auth.InboundQPS, cfg.Auth.InboundBurst))
	v1.Use(middleware.IdempotencyMiddleware(idempotencyStore))
	{
		v1.POST("/orders", orderHandler.PlaceOrder)
		v1.DELETE("/orders/:id", orderHandler.CancelOrder)
		v1.GET("/wallets/:address", walletHandler.Status)
		v1.GET("/fills", fillsHandler.List)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 SafeGate started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stopStream()
	chainClient.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}
