package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/robokiosk/checkout-engine/internal/adapter/gateway"
	"github.com/robokiosk/checkout-engine/internal/adapter/handler"
	"github.com/robokiosk/checkout-engine/internal/adapter/storage"
	"github.com/robokiosk/checkout-engine/internal/adapter/view"
	"github.com/robokiosk/checkout-engine/internal/config"
	"github.com/robokiosk/checkout-engine/internal/core/domain"
	"github.com/robokiosk/checkout-engine/internal/core/service"
)

func main() {
	cfgFile := flag.String("config", "", "config file (optional, env vars override)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Initialize adapters
	redisAdapter := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)
	uiView := view.NewRedisView(rdb, cfg.UIChannel)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	identity := gateway.NewIdentityClient(cfg.IdentityURL, cfg.ClientID, httpClient)
	payments := gateway.NewPaymentClient(cfg.PaymentURL, cfg.PaymentPartnerCode, cfg.PaymentReturnURL, httpClient)
	orderBackend := gateway.NewOrderBackendClient(cfg.OrderBackendURL, httpClient)

	// Initialize services
	fallback := domain.Credential{RefreshToken: cfg.FallbackRefreshToken}
	tokens := service.NewTokenAuthority(ctx, identity, redisAdapter, fallback, cfg.TokenExpiryMargin, logger)

	pricing := domain.Pricing{
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		DeliveryFee:           cfg.DeliveryFee,
	}
	ledger := service.NewLedger(pricing, tokens, redisAdapter, orderBackend, mysqlAdapter, logger)
	checkout := service.NewCheckoutService(ledger, payments, redisAdapter, logger)
	reconciler := service.NewReconciler(checkout, ledger, redisAdapter, uiView, redisAdapter, cfg.SuccessDelay, logger)

	// Resume a checkout interrupted by a gateway-forced reload
	if err := checkout.Restore(ctx); err != nil {
		logger.Error("failed to restore checkout session", zap.Error(err))
	}

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(checkout, ledger, reconciler, cfg.OriginKey, logger)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
