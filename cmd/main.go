package main

import (
	"fmt"
	"os"

	"github.com/ak55m/orderuv2/internal/billing"
	"github.com/ak55m/orderuv2/internal/handler"
	"github.com/ak55m/orderuv2/internal/middleware"
	"github.com/ak55m/orderuv2/internal/store"
	"github.com/ak55m/orderuv2/pkg/config"
	"github.com/ak55m/orderuv2/pkg/database"
	"github.com/ak55m/orderuv2/pkg/jwtutil"
	"github.com/ak55m/orderuv2/pkg/logger"
	"github.com/ak55m/orderuv2/prometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.Info("Starting OrderU API", cfg.LogConfig()...)

	// Initialize database
	if err := database.Initialize(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&jwtutil.Config{
		SigningKey:     cfg.JWT.SigningKey,
		ExpirationDays: cfg.JWT.ExpirationDays,
	})

	// Initialize billing provider and the reconciliation components
	provider, err := billing.NewStripeProvider(billing.StripeConfig{
		SecretKey:         cfg.Stripe.SecretKey,
		PriceID:           cfg.Stripe.PriceID,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
	})
	if err != nil {
		log.Fatal("Failed to initialize billing provider", zap.Error(err))
	}

	subscriptionStore := store.NewSubscriptionStore(database.GetDB())
	reconciler := billing.NewReconciler(subscriptionStore, provider)
	verifier := billing.NewVerifier(subscriptionStore, provider)
	handler.InitBilling(provider, reconciler, verifier, cfg.Stripe.WebhookSecret, cfg.Stripe.FrontendURL)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Billing provider webhook - raw body, no auth, signature-verified
	e.POST("/webhooks/stripe", handler.StripeWebhook)

	api := e.Group("/api")

	// Account routes
	user := api.Group("/user")
	user.POST("/check-email", handler.CheckEmail)
	user.POST("/merchant-register", handler.MerchantRegister)
	user.POST("/merchant-login", handler.MerchantLogin)
	user.DELETE("/delete-account", handler.DeleteAccount, middleware.AuthMiddleware)

	// Billing routes - authenticated, not subscription-gated
	stripeAPI := api.Group("/stripe", middleware.AuthMiddleware)
	stripeAPI.GET("/subscription", handler.GetSubscriptionStatus)
	stripeAPI.POST("/create-checkout-session", handler.CreateCheckoutSession)
	stripeAPI.POST("/create-portal-session", handler.CreatePortalSession)
	stripeAPI.POST("/create-subscription", handler.CreateSubscription)

	// Merchant routes - authenticated and subscription-gated (the guard
	// allow-lists the subscription and settings paths)
	merchant := api.Group("/merchant", middleware.AuthMiddleware, middleware.SubscriptionGuard(verifier))
	merchant.GET("/subscription", handler.GetMerchantSubscription)
	merchant.GET("/settings", handler.GetSettings)
	merchant.PUT("/settings", handler.UpdateSettings)

	// Start server
	log.Info("Starting OrderU API on port " + cfg.Server.Port)
	e.Logger.Fatal(e.Start(":" + cfg.Server.Port))
}
