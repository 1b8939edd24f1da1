package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/douxbatter/storefront/config"
	"github.com/douxbatter/storefront/database"
	"github.com/douxbatter/storefront/feed"
	"github.com/douxbatter/storefront/router"
	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Warn("No .env file loaded, using the process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogJSON)

	switch {
	case cfg.GinMode != "":
		gin.SetMode(cfg.GinMode)
	case cfg.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load business timezone: %v", err)
	}

	db, err := config.InitDB(cfg.Database)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate database: %v", err)
	}

	catalog := services.NewCatalogService(db)
	if cfg.SeedCatalog {
		if _, err := database.SeedCatalog(context.Background(), db, catalog); err != nil {
			utils.ErrorLogger.Fatalf("Failed to seed catalog: %v", err)
		}
	}

	ziina := services.NewZiinaService(cfg.Ziina, cfg.PublicBaseURL)
	if err := ziina.ValidateConfig(); err != nil {
		utils.ErrorLogger.WithError(err).Warn("Payment gateway is not fully configured")
	}

	hub := feed.NewHub()
	refs := services.NewReferenceGenerator(loc)

	orders := services.NewOrderService(db, catalog, refs, ziina, cfg.Delivery).
		WithEvents(hub).
		WithWhatsApp(services.NewWhatsAppLinker(cfg.WhatsAppNumber))
	webhooks := services.NewWebhookService(db, ziina).
		WithEvents(hub).
		WithNotifier(services.NewEmailNotifier(cfg.Mail))

	r := router.SetupRouter(router.Dependencies{
		Orders:        orders,
		Webhooks:      webhooks,
		Sessions:      services.NewSessionService(db, cfg.Admin),
		Catalog:       catalog,
		Slips:         services.NewPackingSlipRenderer("DouxBatter", loc),
		Hub:           hub,
		AllowedOrigin: cfg.CORSAllowedOrigin,
		Secure:        cfg.Admin.CookieSecure,
	})
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		utils.ErrorLogger.WithError(err).Warn("Failed to set trusted proxies")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"env":      cfg.AppEnv,
			"timezone": cfg.BusinessTimezone,
		}).Info("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.InfoLogger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.ErrorLogger.WithError(err).Error("Forced shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
