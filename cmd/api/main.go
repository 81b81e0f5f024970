package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ultracoach/ultracoach-api/internal/config"
	"github.com/ultracoach/ultracoach-api/internal/database"
	"github.com/ultracoach/ultracoach-api/internal/handler"
	"github.com/ultracoach/ultracoach-api/internal/middleware"
	"github.com/ultracoach/ultracoach-api/internal/models"
	"github.com/ultracoach/ultracoach-api/internal/repository"
	"github.com/ultracoach/ultracoach-api/internal/router"
	"github.com/ultracoach/ultracoach-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.CoachRunnerRelationship{},
		&models.TrainingPlan{},
		&models.Workout{},
		&models.Message{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	messageRepo := repository.NewMessageRepository(db)
	workoutRepo := repository.NewWorkoutRepository(db)
	planRepo := repository.NewTrainingPlanRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	messageService := service.NewMessageService(messageRepo, workoutRepo, relationshipRepo, redisClient, cfg.ChannelBase, natsConn, validate, logger)
	typingService := service.NewTypingService(redisClient, cfg.ChannelBase, natsConn, validate, cfg.TypingExpiry, logger)
	workoutService := service.NewWorkoutService(workoutRepo, redisClient, cfg.WorkoutCacheTTL, validate, logger)
	planService := service.NewTrainingPlanService(planRepo, relationshipRepo, notificationRepo, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, logger)

	serviceCtx, cancelServices := context.WithCancel(context.Background())
	defer cancelServices()
	messageService.Start(serviceCtx)
	typingService.Start(serviceCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		MessageHandler:      handler.NewMessageHandler(messageService, logger),
		RealtimeHandler:     handler.NewRealtimeHandler(typingService, messageService, logger),
		WorkoutHandler:      handler.NewWorkoutHandler(workoutService, logger),
		PlanHandler:         handler.NewPlanHandler(planService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cfg)
}

func waitForShutdown(app *fiber.App, cfg config.Config) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
