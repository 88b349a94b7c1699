package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dailyflo/backend/internal/config"
	"github.com/dailyflo/backend/internal/database"
	"github.com/dailyflo/backend/internal/middleware"
	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/internal/services"
	"github.com/dailyflo/backend/pkg/logger"
	"github.com/dailyflo/backend/pkg/resettoken"
	"github.com/dailyflo/backend/pkg/utils"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	lists *services.ListService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
		logger.Init()
		utils.ConfigureJWT("test-secret", 24, 720)
		resettoken.SetSecret("test-secret")
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}

	listService := services.NewListService(db)
	activityService := services.NewActivityService(db)

	cfg := &config.Config{
		Server: config.ServerConfig{
			FrontendURL: "http://localhost:3000",
		},
	}

	authHandler := NewAuthHandler(db, listService, nil)
	ssoHandler := NewSSOHandler(db, cfg, listService)
	listsHandler := NewListsHandler(db, listService, activityService)
	tasksHandler := NewTasksHandler(db, activityService)
	recurringHandler := NewRecurringTasksHandler(db)
	activitiesHandler := NewActivitiesHandler(db)
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

	return &testEnv{app: app, db: db, lists: listService}
}

// createTestUser inserts a user with a live Inbox, matching what
// registration produces.
func createTestUser(t *testing.T, env *testEnv, email, password string) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		AuthProvider: models.AuthProviderEmail,
		PasswordHash: &hash,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
		Preferences:  map[string]interface{}{},
	}
	err = env.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return env.lists.ProvisionDefaults(tx, user)
	})
	if err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	tokens, err := utils.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed generating auth tokens: %v", err)
	}

	return user, tokens.Access
}

func createTestList(t *testing.T, env *testEnv, ownerID uuid.UUID, name string) *models.List {
	t.Helper()

	list := &models.List{
		OwnerID:  ownerID,
		Name:     name,
		Color:    models.ColorGreen,
		Metadata: map[string]interface{}{},
	}
	if err := env.db.Create(list).Error; err != nil {
		t.Fatalf("failed creating test list: %v", err)
	}
	return list
}

func createTestTask(t *testing.T, env *testEnv, ownerID uuid.UUID, title string, listID *uuid.UUID) *models.Task {
	t.Helper()

	task := &models.Task{
		OwnerID:       ownerID,
		ListID:        listID,
		Title:         title,
		PriorityLevel: 3,
		Color:         models.ColorBlue,
		RoutineType:   models.RoutineOnce,
		Metadata:      map[string]interface{}{},
	}
	if err := env.db.Create(task).Error; err != nil {
		t.Fatalf("failed creating test task: %v", err)
	}
	return task
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body["data"])
	}
	return data
}

func dataSlice(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %+v", body["data"])
	}
	return data
}
