package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/storefront-backend/config"
	"github.com/ikkim/storefront-backend/internal/app/controller"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/internal/router"
	"github.com/ikkim/storefront-backend/internal/scheduler"
	"github.com/ikkim/storefront-backend/pkg/logger"
	rediscache "github.com/ikkim/storefront-backend/pkg/redis"
	"github.com/ikkim/storefront-backend/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Server.Environment == "development",
	})

	logger.Info("Starting Storefront Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   cfg.Log.Level,
	})

	shutdownTracing, err := tracing.Init(context.Background(), &cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", err)
	}

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if err := db.Seed(); err != nil {
		logger.Warn("Failed to seed database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Redis backs the stock snapshot cache and the idempotency guard. Both are optional.
	var (
		snapshots service.InventorySnapshotCache
		orderOpts []service.OrderOption
	)
	if cfg.Redis.Enabled {
		if err := rediscache.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, continuing without cache and idempotency guard", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer rediscache.Close()
			client := rediscache.GetClient()
			snapshots = rediscache.NewInventoryCache(client, cfg.Redis.InventoryCacheTTL)
			orderOpts = append(orderOpts, service.WithIdempotencyGuard(
				rediscache.NewIdempotencyStore(client, cfg.Redis.IdempotencyTTL, "idempotency:order"),
			))
		}
	}

	// Initialize repositories
	gdb := db.GetDB()
	userRepo := repository.NewUserRepository(gdb)
	branchRepo := repository.NewBranchRepository(gdb)
	productRepo := repository.NewProductRepository(gdb)
	cartRepo := repository.NewCartRepository(gdb)
	inventoryRepo := repository.NewInventoryRepository(gdb)
	promotionRepo := repository.NewPromotionRepository(gdb)
	orderRepo := repository.NewOrderRepository(gdb)
	txManager := repository.NewTxManager(gdb)

	// Initialize services
	lookup := service.NewCatalogLookup(userRepo, branchRepo, productRepo)
	inventoryService := service.NewInventoryService(inventoryRepo, txManager, lookup, lookup, snapshots)
	promotionService := service.NewPromotionService(promotionRepo, txManager, lookup, service.PromotionPolicy{
		RequireApproval:    cfg.Promotion.RequireApproval,
		SystemNamePrefixes: cfg.Promotion.SystemNamePrefixes,
	})
	cartService := service.NewCartService(cartRepo, lookup, lookup)
	orderService := service.NewOrderService(
		orderRepo, cartRepo, productRepo,
		inventoryService, promotionService,
		lookup, lookup, txManager,
		orderOpts...,
	)

	expiry := scheduler.NewOrderExpiryScheduler(
		orderService,
		cfg.Order.ExpirySchedule,
		cfg.Order.PendingTTL,
		cfg.Order.ExpiryBatchSize,
	)
	if err := expiry.Start(); err != nil {
		logger.Fatal("Failed to start order expiry scheduler", err)
	}

	// Setup router
	r := router.NewRouter(
		controller.NewCartController(cartService),
		controller.NewOrderController(orderService),
		controller.NewPromotionController(promotionService),
		controller.NewInventoryController(inventoryService),
		middleware.NewAuthMiddleware(cfg.JWT.Secret),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	expiry.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("Failed to flush traces", err)
	}
	logger.Info("Server stopped successfully")
}
