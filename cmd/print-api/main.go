package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusprint/print-api/api/swagger"
	"github.com/campusprint/print-api/internal/handler"
	"github.com/campusprint/print-api/internal/middleware"
	"github.com/campusprint/print-api/internal/pricing"
	"github.com/campusprint/print-api/internal/repository"
	"github.com/campusprint/print-api/internal/service"
	"github.com/campusprint/print-api/pkg/blobstore"
	"github.com/campusprint/print-api/pkg/cache"
	"github.com/campusprint/print-api/pkg/config"
	"github.com/campusprint/print-api/pkg/database"
	"github.com/campusprint/print-api/pkg/logger"
	corsmiddleware "github.com/campusprint/print-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusprint/print-api/pkg/middleware/requestid"
	"github.com/campusprint/print-api/pkg/workpool"
)

// @title Campus Print API
// @version 1.0.0
// @description Order intake and fulfillment pipeline for the campus print shop
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		logr.Sugar().Fatalw("failed to initialise schema", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, status cache disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.StatusTTL, logr, true)
		}
	}

	blobs, localDir, err := buildBlobStore(cfg)
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise blob store", "error", err)
	}

	pool := workpool.New(cfg.Uploads.Workers, logr)

	orderRepo := repository.NewOrderRepository(db)
	codeGen := service.NewCodeGenerator(orderRepo, cfg.Orders.MaxCodeGenAttempts)

	uploadSvc := service.NewUploadService(blobs, pool, metricsSvc, logr, service.UploadConfig{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		ParseTimeout:     cfg.Uploads.ParseTimeout,
	})
	orderSvc := service.NewOrderService(orderRepo, codeGen, cacheSvc, metricsSvc, nil, logr, service.OrderConfig{
		Rates: pricing.Rates{
			BWRatePerPage:    cfg.Pricing.BWRatePerPage,
			ColorRatePerPage: cfg.Pricing.ColorRatePerPage,
			ServiceFee:       cfg.Pricing.ServiceFee,
		},
		StrictPageRanges: cfg.Orders.StrictPageRanges,
		StatusCacheTTL:   cfg.Cache.StatusTTL,
	})
	exportSvc := service.NewExportService(orderSvc, nil, nil, logr)
	authSvc := service.NewAuthService(nil, logr, cfg.Admin)

	uploadHandler := handler.NewUploadHandler(uploadSvc)
	orderHandler := handler.NewOrderHandler(orderSvc, exportSvc, logr)
	authHandler := handler.NewAuthHandler(authSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.MaxMultipartMemory = cfg.Uploads.MaxFileSizeBytes

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if localDir != "" {
		r.Static(cfg.Blob.LocalPublicBase, localDir)
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)

		api.POST("/orders/upload", uploadHandler.Upload)
		api.POST("/orders", orderHandler.Create)
		api.GET("/orders/status/:token", orderHandler.Status)
		api.GET("/orders/search/:name", orderHandler.Search)

		admin := api.Group("", middleware.JWT(authSvc))
		{
			admin.GET("/orders", orderHandler.List)
			admin.GET("/orders/export", orderHandler.Export)
			admin.PATCH("/orders/:id/status", orderHandler.UpdateStatus)
			admin.DELETE("/orders/:id", orderHandler.Delete)
		}
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "blobBackend", cfg.Blob.Backend)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// buildBlobStore selects the configured backend. The second return value is
// the local directory to serve over HTTP, empty for remote backends.
func buildBlobStore(cfg *config.Config) (blobstore.Store, string, error) {
	switch cfg.Blob.Backend {
	case config.BlobBackendSupabase:
		store, err := blobstore.NewSupabaseStore(cfg.Blob.SupabaseURL, cfg.Blob.SupabaseKey, cfg.Blob.SupabaseBucket)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case config.BlobBackendLocal:
		store, err := blobstore.NewLocalStore(cfg.Blob.LocalDir, publicBase(cfg))
		if err != nil {
			return nil, "", err
		}
		return store, store.BaseDir(), nil
	default:
		return nil, "", fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}

func publicBase(cfg *config.Config) string {
	base := cfg.Blob.LocalPublicBase
	if base == "" {
		base = "/files"
	}
	return base
}
