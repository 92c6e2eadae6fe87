package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment-service/catalog"
	"fulfillment-service/config"
	"fulfillment-service/controllers"
	"fulfillment-service/database"
	"fulfillment-service/repository"
	"fulfillment-service/routes"
	"fulfillment-service/sender"
	"fulfillment-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Config load failed", zap.Error(err))
	}

	// Database
	if err := database.Connect(cfg, logger); err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}

	// Product catalog, reloadable on SIGHUP
	catalogs, err := catalog.NewStore(cfg.CatalogPath)
	if err != nil {
		logger.Fatal("Catalog load failed", zap.Error(err))
	}
	logger.Info("Catalog loaded",
		zap.String("path", cfg.CatalogPath),
		zap.Int("entries", catalogs.Current().Len()),
	)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			if err := catalogs.Reload(); err != nil {
				logger.Error("Catalog reload failed, keeping previous catalog", zap.Error(err))
				continue
			}
			logger.Info("Catalog reloaded", zap.Int("entries", catalogs.Current().Len()))
		}
	}()

	// Mail transport
	smtpSender, err := sender.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
	if err != nil {
		logger.Fatal("Failed to init SMTP sender", zap.Error(err))
	}
	emailSender := sender.NewResilientSender(smtpSender, logger)

	// SNS event publishing (non-fatal)
	var publisher services.EventPublisher
	if snsPublisher, err := services.NewSNSPublisher(context.Background(), cfg.FulfillmentSNSTopicARN); err != nil {
		logger.Warn("SNS publisher init failed, fulfillment events disabled", zap.Error(err))
	} else {
		publisher = snsPublisher
	}

	// Dependency injection
	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	fulfillmentRepo := repository.NewGormFulfillmentRepo(database.DB)
	fulfillmentSvc := services.NewFulfillmentService(stripeSvc, catalogs, emailSender, fulfillmentRepo, publisher, logger)
	fc := &controllers.FulfillmentController{
		Stripe:      stripeSvc,
		Fulfillment: fulfillmentSvc,
		Logger:      logger,
	}

	// Router
	r := gin.New()
	r.Use(gin.Recovery())

	// Request logging
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	})

	// Request timeout
	r.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	routes.RegisterRoutes(r, fc)

	// HTTP server
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("Fulfillment service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	if err := database.Close(); err != nil {
		logger.Error("Database close error", zap.Error(err))
	}

	logger.Info("Fulfillment service stopped gracefully")
}
