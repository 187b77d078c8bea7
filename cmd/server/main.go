package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CarbonSense/service-estimation/internal/application"
	"github.com/CarbonSense/service-estimation/internal/config"
	"github.com/CarbonSense/service-estimation/internal/events"
	"github.com/CarbonSense/service-estimation/internal/geo"
	"github.com/CarbonSense/service-estimation/internal/geocoding"
	"github.com/CarbonSense/service-estimation/internal/grid"
	"github.com/CarbonSense/service-estimation/internal/handler"
	"github.com/CarbonSense/service-estimation/internal/inference"
	"github.com/CarbonSense/service-estimation/internal/optimization"
	"github.com/CarbonSense/service-estimation/internal/platform/database"
	"github.com/CarbonSense/service-estimation/internal/platform/health"
	"github.com/CarbonSense/service-estimation/internal/platform/kafka"
	"github.com/CarbonSense/service-estimation/internal/platform/logger"
	"github.com/CarbonSense/service-estimation/internal/platform/middleware"
	"github.com/CarbonSense/service-estimation/internal/repository"
	"github.com/CarbonSense/service-estimation/internal/traffic"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-estimation")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-estimation",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.EstimateModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		dbURL := dbConfig.DatabaseURL()
		if err := database.RunMigrations(dbURL, "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize upstream clients
	cityIndex := geo.NewCityIndex()

	gridService := grid.NewService(
		grid.NewUKCarbonIntensityClient(cfg.Upstreams.CarbonIntensityURL),
		grid.NewWattTimeClient(cfg.Upstreams.WattTimeURL, cfg.Upstreams.WattTimeCredentials),
		grid.NewElectricityMapsClient(cfg.Upstreams.ElectricityMapsURL, cfg.Upstreams.ElectricityMapsKey),
		grid.NewWeatherClient(cfg.Upstreams.OpenMeteoURL),
		cityIndex.DefaultCoords,
		log,
	)

	trafficService := traffic.NewService(
		traffic.NewTomTomClient(cfg.Upstreams.TomTomURL, cfg.Upstreams.TomTomKey),
		traffic.NewGoogleDirectionsClient(cfg.Upstreams.GoogleMapsURL, cfg.Upstreams.GoogleMapsKey),
		log,
	)

	inferenceClient := inference.NewClient(cfg.Upstreams.ModelServerURL)
	geocoder := geocoding.NewClient(cfg.Upstreams.NominatimBaseURL, cfg.Upstreams.NominatimUserAgent)

	// Initialize repositories
	estimateRepo := repository.NewGormEstimateRepository(db)
	sessionStore := repository.NewRouteSessionStore(repository.DefaultSessionTTL)

	// Initialize application services
	estimationService := application.NewEstimationService(
		inferenceClient,
		gridService,
		trafficService,
		estimateRepo,
		kafkaProducer,
		log,
	)

	planner := optimization.NewPlanner(gridService, trafficService, cityIndex, log)
	optimizationService := application.NewOptimizationService(planner, kafkaProducer, log)

	geocodingService := application.NewGeocodingService(geocoder, log)
	routeSessionService := application.NewRouteSessionService(sessionStore, geocoder, 0, log)
	adminService := application.NewAdminService(estimateRepo, log)

	// Initialize and start grid signal consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "estimation-service"
	gridConsumer := events.NewGridSignalConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		gridService,
		log,
	)
	defer func() { _ = gridConsumer.Close() }()

	go func() {
		log.Info("starting grid signal consumer")
		if err := gridConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("grid signal consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	predictionHandler := handler.NewPredictionHandler(estimationService, optimizationService)
	geocodeHandler := handler.NewGeocodeHandler(geocodingService)
	routeSessionHandler := handler.NewRouteSessionHandler(routeSessionService)
	adminHandler := handler.NewAdminHandler(adminService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-estimation", []string{
		"multi_model_prediction",
		"time_optimization",
		"live_grid_context",
		"traffic_context",
		"route_sessions",
	})
	healthHandler.RegisterRoutes(router)

	// Register routes
	predictionHandler.RegisterRoutes(&router.RouterGroup)
	geocodeHandler.RegisterRoutes(&router.RouterGroup)
	routeSessionHandler.RegisterRoutes(&router.RouterGroup)
	adminHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-estimation...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-estimation stopped")
}
