package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"aidash-backend/chat"
	"aidash-backend/conn"
	"aidash-backend/conversations"
	"aidash-backend/logging"
	"aidash-backend/login"
	"aidash-backend/metrics"
	"aidash-backend/migrations"
	"aidash-backend/openai"
	"aidash-backend/profile"
	"aidash-backend/quota"
	"aidash-backend/subscriptions"
	"aidash-backend/users"
)

func main() {
	_ = godotenv.Load()
	logging.Setup()

	db, err := conn.Open(conn.ConfigFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	// Repositories and services, constructed once and injected.
	userRepo := users.NewRepository(db)
	subRepo := subscriptions.NewRepository(db)
	convRepo := conversations.NewRepository(db)
	ledger := quota.NewLedger(db)

	checker := quota.NewChecker(subRepo, ledger)
	gate := quota.NewGate(checker, ledger)

	ai := openai.NewFromEnv()
	if ai == nil {
		log.Warn().Msg("OPENAI_API_KEY not set; chat completions will fail")
	}
	stripeSvc := subscriptions.NewStripeFromEnv(subRepo)
	if stripeSvc == nil {
		log.Warn().Msg("STRIPE_SECRET_KEY not set; stripe billing disabled")
	}
	paypalSvc := subscriptions.NewPayPalFromEnv(subRepo)
	if paypalSvc == nil {
		log.Warn().Msg("PAYPAL_CLIENT_ID/SECRET not set; paypal billing disabled")
	}

	loginHandler := login.NewHandler(userRepo)
	subHandler := subscriptions.NewHandler(subRepo, stripeSvc, paypalSvc)
	convHandler := conversations.NewHandler(convRepo)
	chatHandler := chat.NewHandler(ai, convRepo, gate)
	profileHandler := profile.NewHandler(userRepo)

	// Free-tier counters reset on the billing-period boundary.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 0 1 * *", func() {
		if err := ledger.ResetAll(context.Background()); err != nil {
			log.Error().Err(err).Msg("usage reset failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("scheduler setup failed")
	}
	scheduler.Start()
	defer scheduler.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.Middleware())
	r.Use(login.Identify())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	loginHandler.RegisterRoutes(api)
	subHandler.RegisterWebhookRoutes(api)

	// Gated operation: the gate itself answers 401/403, so no RequireAuth.
	api.POST("/chat", gate.Middleware(quota.FreeTierLimited), chatHandler.Message)

	authed := api.Group("", login.RequireAuth())
	authed.GET("/api-limit", gate.ApiLimit)
	subHandler.RegisterRoutes(authed)
	convHandler.RegisterRoutes(authed)
	profileHandler.RegisterRoutes(authed)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Info().Str("port", port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
