package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/dailyflo/backend/internal/middleware"
	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/internal/services"
	"github.com/dailyflo/backend/pkg/logger"
	"github.com/dailyflo/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ListsHandler struct {
	DB         *gorm.DB
	Lists      *services.ListService
	Activities *services.ActivityService
}

func NewListsHandler(db *gorm.DB, lists *services.ListService, activities *services.ActivityService) *ListsHandler {
	return &ListsHandler{DB: db, Lists: lists, Activities: activities}
}

type taskCountRow struct {
	ListID    uuid.UUID
	Total     int64
	Completed int64
}

func (h *ListsHandler) fillTaskCounts(ownerID uuid.UUID, lists []*models.List) error {
	if len(lists) == 0 {
		return nil
	}

	var rows []taskCountRow
	err := h.DB.Model(&models.Task{}).
		Select("list_id, COUNT(*) AS total, SUM(CASE WHEN is_completed THEN 1 ELSE 0 END) AS completed").
		Where("owner_id = ? AND soft_deleted = ? AND list_id IS NOT NULL", ownerID, false).
		Group("list_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}

	counts := make(map[uuid.UUID]taskCountRow, len(rows))
	for _, row := range rows {
		counts[row.ListID] = row
	}

	for _, list := range lists {
		row := counts[list.ID]
		list.TaskCount = row.Total
		list.CompletedTaskCount = row.Completed
		list.PendingTaskCount = row.Total - row.Completed
	}
	return nil
}

func (h *ListsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var lists []*models.List
	if err := h.DB.
		Where("owner_id = ? AND soft_deleted = ?", currentUser.ID, false).
		Order("sort_order ASC, name ASC, id ASC").
		Find(&lists).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing lists")
	}

	if err := h.fillTaskCounts(currentUser.ID, lists); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting tasks")
	}

	return utils.Success(c, fiber.StatusOK, lists)
}

type createListRequest struct {
	Name        string                 `json:"name" validate:"required,max=255"`
	Description *string                `json:"description"`
	Color       string                 `json:"color" validate:"omitempty,oneof=red blue green yellow purple teal orange"`
	Icon        *string                `json:"icon" validate:"omitempty,max=50"`
	SortOrder   int                    `json:"sortOrder"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (h *ListsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createListRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	if fieldErrors := utils.ValidateStruct(req); fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}

	available, err := h.Lists.NameAvailable(currentUser.ID, req.Name, nil)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking list name")
	}
	if !available {
		return utils.Error(c, fiber.StatusConflict, "a list with this name already exists")
	}

	color := models.Color(req.Color)
	if req.Color == "" {
		color = models.ColorBlue
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	list := models.List{
		OwnerID:     currentUser.ID,
		Name:        req.Name,
		Description: req.Description,
		Color:       color,
		Icon:        req.Icon,
		SortOrder:   req.SortOrder,
		Metadata:    metadata,
	}

	if err := h.DB.Create(&list).Error; err != nil {
		// Concurrent creates race the availability check; the partial unique
		// index settles it.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusConflict, "a list with this name already exists")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating list")
	}

	h.Activities.Record(currentUser.ID, "list_created", "list", &list.ID, map[string]interface{}{
		"name": list.Name,
	})

	return utils.Success(c, fiber.StatusCreated, list)
}

func (h *ListsHandler) getOwnedList(ownerID uuid.UUID, listID uuid.UUID) (*models.List, error) {
	var list models.List
	err := h.DB.First(&list, "id = ? AND owner_id = ? AND soft_deleted = ?", listID, ownerID, false).Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (h *ListsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	listID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid list id")
	}

	list, err := h.getOwnedList(currentUser.ID, listID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "list not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading list")
	}

	if err := h.fillTaskCounts(currentUser.ID, []*models.List{list}); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting tasks")
	}

	return utils.Success(c, fiber.StatusOK, list)
}

// GetDefault returns the caller's inbox list.
func (h *ListsHandler) GetDefault(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var list models.List
	err := h.DB.First(&list, "owner_id = ? AND is_default = ? AND soft_deleted = ?", currentUser.ID, true, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "default list not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading default list")
	}

	return utils.Success(c, fiber.StatusOK, list)
}

type updateListRequest struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Color       *string                 `json:"color"`
	Icon        *string                 `json:"icon"`
	SortOrder   *int                    `json:"sortOrder"`
	Metadata    *map[string]interface{} `json:"metadata"`
}

// Update handles every field except the default flag; promoting a list goes
// through SetDefault so the swap stays atomic.
func (h *ListsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	listID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid list id")
	}

	if _, err := h.getOwnedList(currentUser.ID, listID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "list not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading list")
	}

	var req updateListRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.ValidationFailed(c, map[string]string{"name": "name cannot be empty"})
		}
		available, err := h.Lists.NameAvailable(currentUser.ID, name, &listID)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking list name")
		}
		if !available {
			return utils.Error(c, fiber.StatusConflict, "a list with this name already exists")
		}
		updates["name"] = name
	}
	if req.Color != nil {
		if !models.IsValidColor(models.Color(*req.Color)) {
			return utils.ValidationFailed(c, map[string]string{"color": "invalid color"})
		}
		updates["color"] = *req.Color
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			updates["description"] = nil
		} else {
			updates["description"] = trimmed
		}
	}
	if req.Icon != nil {
		trimmed := strings.TrimSpace(*req.Icon)
		if trimmed == "" {
			updates["icon"] = nil
		} else {
			updates["icon"] = trimmed
		}
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.Metadata != nil {
		updates["metadata"] = *req.Metadata
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.List{}).Where("id = ?", listID).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.Error(c, fiber.StatusConflict, "a list with this name already exists")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating list")
	}

	var updated models.List
	if err := h.DB.First(&updated, "id = ?", listID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated list")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *ListsHandler) SetDefault(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	listID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid list id")
	}

	list, err := h.Lists.SetDefault(currentUser.ID, listID)
	if err != nil {
		if errors.Is(err, services.ErrListNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "list not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed setting default list")
	}

	return utils.Success(c, fiber.StatusOK, list)
}

type deleteListRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *ListsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	listID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid list id")
	}

	var req deleteListRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Confirm {
		return utils.ValidationFailed(c, map[string]string{"confirm": "list deletion must be confirmed"})
	}

	detached, err := h.Lists.SoftDelete(currentUser.ID, listID)
	if err != nil {
		if errors.Is(err, services.ErrListNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "list not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting list")
	}

	h.Activities.Record(currentUser.ID, "list_deleted", "list", &listID, map[string]interface{}{
		"tasks_detached": detached,
	})
	logger.InfoWithUser(currentUser.ID.String(), "list_deleted", map[string]interface{}{
		"list_id":        listID.String(),
		"tasks_detached": detached,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message":       "list deleted",
		"tasksDetached": detached,
	})
}

// Tasks returns the live tasks of one list, optionally filtered by
// completion state.
func (h *ListsHandler) Tasks(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	listID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid list id")
	}

	list, err := h.getOwnedList(currentUser.ID, listID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "list not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading list")
	}

	query := h.DB.
		Where("owner_id = ? AND list_id = ? AND soft_deleted = ?", currentUser.ID, listID, false)

	if completed := c.Query("completed"); completed != "" {
		query = query.Where("is_completed = ?", completed == "true")
	}

	var tasks []*models.Task
	if err := query.Order("created_at DESC, id DESC").Find(&tasks).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing tasks")
	}

	now := time.Now()
	for _, task := range tasks {
		task.ListName = list.Name
		task.ListColor = list.Color
		task.Overdue = task.IsOverdue(now)
	}

	return utils.Success(c, fiber.StatusOK, tasks)
}
