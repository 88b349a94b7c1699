package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dailyflo/backend/internal/config"
	"github.com/dailyflo/backend/internal/database"
	"github.com/dailyflo/backend/internal/handlers"
	"github.com/dailyflo/backend/internal/middleware"
	"github.com/dailyflo/backend/internal/services"
	"github.com/dailyflo/backend/internal/storage"
	"github.com/dailyflo/backend/pkg/logger"
	"github.com/dailyflo/backend/pkg/resettoken"
	"github.com/dailyflo/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours, cfg.JWT.RefreshExpirationHours)
	resettoken.SetSecret(cfg.JWT.Secret)
	resettoken.StartCleanup(5 * time.Minute)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		logger.Error("minio_init_failed", err, map[string]interface{}{"endpoint": cfg.MinIO.Endpoint})
		storageClient = nil
	} else if err := storageClient.EnsureBucket(context.Background()); err != nil {
		logger.Error("minio_bucket_unavailable", err, map[string]interface{}{"bucket": cfg.MinIO.Bucket})
		storageClient = nil
	}

	listService := services.NewListService(db)
	activityService := services.NewActivityService(db)

	authHandler := handlers.NewAuthHandler(db, listService, storageClient)
	ssoHandler := handlers.NewSSOHandler(db, cfg, listService)
	listsHandler := handlers.NewListsHandler(db, listService, activityService)
	tasksHandler := handlers.NewTasksHandler(db, activityService)
	recurringHandler := handlers.NewRecurringTasksHandler(db)
	activitiesHandler := handlers.NewActivitiesHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Post("/password-reset/request", authHandler.RequestPasswordReset)
	authRoutes.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Post("/me/avatar", authMiddleware.RequireAuth, authHandler.UploadAvatar)
	authRoutes.Delete("/me", authMiddleware.RequireAuth, authHandler.Deactivate)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	ssoRoutes := api.Group("/auth/sso")
	ssoRoutes.Get("/:provider", ssoHandler.GetLoginRedirect)
	ssoRoutes.Get("/:provider/callback", ssoHandler.HandleOAuthCallback)

	listRoutes := api.Group("/lists", authMiddleware.RequireAuth)
	listRoutes.Get("/", listsHandler.List)
	listRoutes.Post("/", listsHandler.Create)
	listRoutes.Get("/default", listsHandler.GetDefault)
	listRoutes.Get("/:id/tasks", listsHandler.Tasks)
	listRoutes.Post("/:id/set-default", listsHandler.SetDefault)
	listRoutes.Get("/:id", listsHandler.Get)
	listRoutes.Patch("/:id", listsHandler.Update)
	listRoutes.Delete("/:id", listsHandler.Delete)

	taskRoutes := api.Group("/tasks", authMiddleware.RequireAuth)
	taskRoutes.Get("/", tasksHandler.List)
	taskRoutes.Post("/", tasksHandler.Create)
	taskRoutes.Get("/today", tasksHandler.Today)
	taskRoutes.Get("/overdue", tasksHandler.Overdue)
	taskRoutes.Get("/completed", tasksHandler.Completed)
	taskRoutes.Patch("/:id/complete", tasksHandler.Complete)
	taskRoutes.Patch("/:id/toggle-delete", tasksHandler.ToggleDelete)
	taskRoutes.Get("/:id", tasksHandler.Get)
	taskRoutes.Patch("/:id", tasksHandler.Update)

	recurringRoutes := api.Group("/recurring-tasks", authMiddleware.RequireAuth)
	recurringRoutes.Get("/", recurringHandler.List)
	recurringRoutes.Post("/", recurringHandler.Create)
	recurringRoutes.Patch("/:id/toggle-delete", recurringHandler.ToggleDelete)
	recurringRoutes.Get("/:id", recurringHandler.Get)
	recurringRoutes.Patch("/:id", recurringHandler.Update)

	api.Get("/activities", authMiddleware.RequireAuth, activitiesHandler.List)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
