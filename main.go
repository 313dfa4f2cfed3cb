package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"resqlink/config"
	"resqlink/controllers"
	"resqlink/database"
	"resqlink/repositories"
	"resqlink/routes"
	"resqlink/services"
	"resqlink/utils"
	"resqlink/websocket"
	"resqlink/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, reading configuration from environment")
	}

	cfg := config.Load()
	setupLogging(cfg)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Database connection failed: %v", err)
	}
	defer database.Disconnect()

	if cfg.IsDevelopment() {
		if err := database.RunSeeders(db); err != nil {
			logrus.Warnf("Seeder warning: %v", err)
		}
	}

	redisClient := config.InitRedis(cfg)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logrus.Warnf("Redis unavailable, caching and rate limiting degrade: %v", err)
	}

	// Repositories
	emergencyRepo := repositories.NewEmergencyRepository(db)
	userRepo := repositories.NewUserRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	chatRepo := repositories.NewChatRepository(db)

	// Shared plumbing
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	validationService := utils.NewValidationService()
	hub := websocket.NewHub()

	// Delivery channels, degrading to mocks when unconfigured
	var pushSender services.PushSender
	if cfg.FirebaseCredentials != "" {
		ps, err := services.NewPushService(cfg.FirebaseCredentials)
		if err != nil {
			logrus.Fatalf("Push service init failed: %v", err)
		}
		pushSender = ps
	} else {
		logrus.Warn("Firebase credentials not configured, using mock push sender")
		pushSender = services.NewMockPushSender()
	}

	var smsSender services.SMSSender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		smsSender = services.NewSMSService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
	} else {
		logrus.Warn("Twilio not configured, using mock SMS sender")
		smsSender = services.NewMockSMSSender()
	}

	var emailSender services.EmailSender
	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		emailSender = services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		logrus.Warn("SMTP not configured, using mock email sender")
		emailSender = services.NewMockEmailSender()
	}

	// Services
	fanoutService := services.NewFanoutService(notificationRepo, hub, pushSender, smsSender, emailSender, userRepo)
	geocoder := services.NewGeocodingService(cfg.GeocodingBaseURL)
	emergencyService := services.NewEmergencyService(
		emergencyRepo,
		userRepo,
		fanoutService,
		hub,
		geocoder,
		validationService,
		services.EmergencyConfig{
			SearchRadiusMeters: cfg.SearchRadiusMeters,
			CandidateFreshness: time.Duration(cfg.CandidateFreshnessMinutes) * time.Minute,
		},
	)
	chatService := services.NewChatService(chatRepo, emergencyRepo, hub)
	notificationService := services.NewNotificationService(notificationRepo, redisClient)
	userService := services.NewUserService(userRepo, validationService)

	// The hub needs the services it was constructed before.
	hub.Attach(emergencyService, chatService)
	go hub.Run()
	defer hub.Shutdown()

	cleanupWorker := workers.NewCleanupWorker(emergencyRepo, notificationRepo, hub, workers.CleanupWorkerConfig{})
	cleanupWorker.Start()
	defer cleanupWorker.Stop()

	router := gin.New()
	routes.SetupRoutes(router, routes.Dependencies{
		Emergency:      controllers.NewEmergencyController(emergencyService),
		Message:        controllers.NewMessageController(chatService),
		Notification:   controllers.NewNotificationController(notificationService),
		User:           controllers.NewUserController(userService),
		WebSocket:      controllers.NewWebSocketController(hub, jwtService),
		Health:         controllers.NewHealthController(db, redisClient, hub),
		JWT:            jwtService,
		Redis:          redisClient,
		AllowedOrigins: strings.Split(cfg.AllowedOrigins, ","),
		RateLimit:      cfg.RateLimitRequests,
		RateWindow:     time.Duration(cfg.RateLimitWindowMinutes) * time.Minute,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Forced shutdown: %v", err)
	}
}

func setupLogging(cfg *config.Config) {
	logrus.SetOutput(os.Stdout)
	if cfg.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
