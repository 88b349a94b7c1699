package handlers

import (
	"github.com/dailyflo/backend/internal/middleware"
	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ActivitiesHandler struct {
	DB *gorm.DB
}

func NewActivitiesHandler(db *gorm.DB) *ActivitiesHandler {
	return &ActivitiesHandler{DB: db}
}

func (h *ActivitiesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	baseQuery := h.DB.Model(&models.Activity{}).Where("user_id = ?", currentUser.ID)

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting activities")
	}

	p := utils.ParsePagination(c)
	var activities []models.Activity
	if err := utils.ApplyPagination(baseQuery.Order("created_at DESC, id DESC"), p).Find(&activities).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing activities")
	}

	return utils.Paginated(c, activities, p.Page, p.Limit, total)
}
