package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/dailyflo/backend/internal/middleware"
	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RecurringTasksHandler stores routine templates. No endpoint generates
// tasks from them.
type RecurringTasksHandler struct {
	DB *gorm.DB
}

func NewRecurringTasksHandler(db *gorm.DB) *RecurringTasksHandler {
	return &RecurringTasksHandler{DB: db}
}

type recurringTaskRequest struct {
	Title         *string                 `json:"title"`
	Description   *string                 `json:"description"`
	DayOfWeek     *int                    `json:"dayOfWeek"`
	DueDate       *time.Time              `json:"dueDate"`
	IsActive      *bool                   `json:"isActive"`
	PriorityLevel *int                    `json:"priorityLevel"`
	Metadata      *map[string]interface{} `json:"metadata"`
}

func validateRecurringTaskFields(req *recurringTaskRequest) map[string]string {
	fieldErrors := map[string]string{}

	if req.DayOfWeek != nil && (*req.DayOfWeek < 0 || *req.DayOfWeek > 6) {
		fieldErrors["dayOfWeek"] = "day of week must be between 0 and 6"
	}
	if req.PriorityLevel != nil && (*req.PriorityLevel < models.MinPriority || *req.PriorityLevel > models.MaxPriority) {
		fieldErrors["priorityLevel"] = "priority must be between 1 and 5"
	}

	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

func (h *RecurringTasksHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req recurringTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return utils.ValidationFailed(c, map[string]string{"title": "title is required"})
	}
	if fieldErrors := validateRecurringTaskFields(&req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}

	template := models.RecurringTask{
		OwnerID:       currentUser.ID,
		Title:         strings.TrimSpace(*req.Title),
		DueDate:       req.DueDate,
		PriorityLevel: 3,
		Metadata:      map[string]interface{}{},
	}
	if req.Description != nil {
		template.Description = strings.TrimSpace(*req.Description)
	}
	if req.DayOfWeek != nil {
		template.DayOfWeek = *req.DayOfWeek
	}
	if req.IsActive != nil {
		template.IsActive = *req.IsActive
	}
	if req.PriorityLevel != nil {
		template.PriorityLevel = *req.PriorityLevel
	}
	if req.Metadata != nil {
		template.Metadata = *req.Metadata
	}

	if err := h.DB.Create(&template).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating recurring task")
	}

	return utils.Success(c, fiber.StatusCreated, template)
}

func (h *RecurringTasksHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var templates []models.RecurringTask
	err := h.DB.
		Where("owner_id = ? AND soft_deleted = ?", currentUser.ID, false).
		Order("created_at DESC, id DESC").
		Find(&templates).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing recurring tasks")
	}

	return utils.Success(c, fiber.StatusOK, templates)
}

func (h *RecurringTasksHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	templateID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid recurring task id")
	}

	var template models.RecurringTask
	err = h.DB.First(&template, "id = ? AND owner_id = ? AND soft_deleted = ?", templateID, currentUser.ID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "recurring task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading recurring task")
	}

	return utils.Success(c, fiber.StatusOK, template)
}

func (h *RecurringTasksHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	templateID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid recurring task id")
	}

	var template models.RecurringTask
	err = h.DB.First(&template, "id = ? AND owner_id = ? AND soft_deleted = ?", templateID, currentUser.ID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "recurring task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading recurring task")
	}

	var req recurringTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return utils.ValidationFailed(c, map[string]string{"title": "title cannot be empty"})
	}
	if fieldErrors := validateRecurringTaskFields(&req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.DayOfWeek != nil {
		updates["day_of_week"] = *req.DayOfWeek
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.PriorityLevel != nil {
		updates["priority_level"] = *req.PriorityLevel
	}
	if req.Metadata != nil {
		updates["metadata"] = *req.Metadata
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&template).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating recurring task")
	}

	var updated models.RecurringTask
	if err := h.DB.First(&updated, "id = ?", templateID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated recurring task")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *RecurringTasksHandler) ToggleDelete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	templateID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid recurring task id")
	}

	var template models.RecurringTask
	if err := h.DB.First(&template, "id = ? AND owner_id = ?", templateID, currentUser.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "recurring task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading recurring task")
	}

	newState := !template.SoftDeleted
	if err := h.DB.Model(&template).Update("soft_deleted", newState).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating recurring task")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"softDeleted": newState})
}
