package handlers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dailyflo/backend/internal/middleware"
	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/internal/services"
	"github.com/dailyflo/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TasksHandler struct {
	DB         *gorm.DB
	Activities *services.ActivityService
}

func NewTasksHandler(db *gorm.DB, activities *services.ActivityService) *TasksHandler {
	return &TasksHandler{DB: db, Activities: activities}
}

// orderableTaskColumns whitelists what the ordering query param may name.
var orderableTaskColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"due_date":       "due_date",
	"priority_level": "priority_level",
	"title":          "title",
}

type taskRequest struct {
	Title         *string                 `json:"title"`
	Description   *string                 `json:"description"`
	DueDate       *time.Time              `json:"dueDate"`
	PriorityLevel *int                    `json:"priorityLevel"`
	Color         *string                 `json:"color"`
	RoutineType   *string                 `json:"routineType"`
	ListID        *uuid.UUID              `json:"listID"`
	SortOrder     *int                    `json:"sortOrder"`
	Metadata      *map[string]interface{} `json:"metadata"`
}

// validateTaskFields checks the cross-cutting task rules shared by create
// and update: due dates must not lie in the past, priorities stay in 1..5,
// enums must be known, and a referenced list must belong to the caller.
func (h *TasksHandler) validateTaskFields(ownerID uuid.UUID, req *taskRequest) (map[string]string, error) {
	fieldErrors := map[string]string{}

	if req.DueDate != nil && req.DueDate.Before(time.Now()) {
		fieldErrors["dueDate"] = "due date cannot be in the past"
	}
	if req.PriorityLevel != nil && (*req.PriorityLevel < models.MinPriority || *req.PriorityLevel > models.MaxPriority) {
		fieldErrors["priorityLevel"] = "priority must be between 1 and 5"
	}
	if req.Color != nil && !models.IsValidColor(models.Color(*req.Color)) {
		fieldErrors["color"] = "invalid color"
	}
	if req.RoutineType != nil && !models.IsValidRoutineType(models.RoutineType(*req.RoutineType)) {
		fieldErrors["routineType"] = "invalid routine type"
	}

	if req.ListID != nil {
		var count int64
		err := h.DB.Model(&models.List{}).
			Where("id = ? AND owner_id = ? AND soft_deleted = ?", *req.ListID, ownerID, false).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count == 0 {
			fieldErrors["listID"] = "you can only assign tasks to your own lists"
		}
	}

	if len(fieldErrors) == 0 {
		return nil, nil
	}
	return fieldErrors, nil
}

// annotateTasks fills the derived task fields: the overdue flag and the
// name/color of the containing list, resolved in one query per batch.
func annotateTasks(db *gorm.DB, tasks ...*models.Task) error {
	wanted := map[uuid.UUID]struct{}{}
	for _, task := range tasks {
		if task.ListID != nil {
			wanted[*task.ListID] = struct{}{}
		}
	}

	lookup := map[uuid.UUID]models.List{}
	if len(wanted) > 0 {
		ids := make([]uuid.UUID, 0, len(wanted))
		for id := range wanted {
			ids = append(ids, id)
		}
		var lists []models.List
		if err := db.Find(&lists, "id IN ?", ids).Error; err != nil {
			return err
		}
		for _, list := range lists {
			lookup[list.ID] = list
		}
	}

	now := time.Now()
	for _, task := range tasks {
		task.Overdue = task.IsOverdue(now)
		if task.ListID == nil {
			continue
		}
		if list, ok := lookup[*task.ListID]; ok {
			task.ListName = list.Name
			task.ListColor = list.Color
		}
	}
	return nil
}

func taskRefs(tasks []models.Task) []*models.Task {
	refs := make([]*models.Task, len(tasks))
	for i := range tasks {
		refs[i] = &tasks[i]
	}
	return refs
}

func (h *TasksHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req taskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return utils.ValidationFailed(c, map[string]string{"title": "title is required"})
	}
	fieldErrors, err := h.validateTaskFields(currentUser.ID, &req)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating task")
	}
	if fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}

	task := models.Task{
		OwnerID:       currentUser.ID,
		ListID:        req.ListID,
		Title:         strings.TrimSpace(*req.Title),
		DueDate:       req.DueDate,
		PriorityLevel: 3,
		Color:         models.ColorBlue,
		RoutineType:   models.RoutineOnce,
		Metadata:      map[string]interface{}{},
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.PriorityLevel != nil {
		task.PriorityLevel = *req.PriorityLevel
	}
	if req.Color != nil {
		task.Color = models.Color(*req.Color)
	}
	if req.RoutineType != nil {
		task.RoutineType = models.RoutineType(*req.RoutineType)
	}
	if req.SortOrder != nil {
		task.SortOrder = *req.SortOrder
	}
	if req.Metadata != nil {
		task.Metadata = *req.Metadata
	}

	if err := h.DB.Create(&task).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating task")
	}

	h.Activities.Record(currentUser.ID, "task_created", "task", &task.ID, map[string]interface{}{
		"title": task.Title,
	})

	if err := annotateTasks(h.DB, &task); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task list")
	}

	return utils.Success(c, fiber.StatusCreated, task)
}

// List supports field filters, free-text search over title and description,
// and whitelisted ordering. Results are always the caller's own live tasks;
// ties are broken by id so pagination stays deterministic.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	query := h.DB.Model(&models.Task{}).
		Where("owner_id = ? AND soft_deleted = ?", currentUser.ID, false)

	if value := c.Query("is_completed"); value != "" {
		query = query.Where("is_completed = ?", value == "true")
	}
	if value := c.Query("color"); value != "" {
		query = query.Where("color = ?", value)
	}
	if value := c.Query("routine_type"); value != "" {
		query = query.Where("routine_type = ?", value)
	}
	if value := c.QueryInt("priority_level", 0); value != 0 {
		query = query.Where("priority_level = ?", value)
	}
	if value := c.Query("list_id"); value != "" {
		listID, err := parseUUID(value)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid list_id filter")
		}
		query = query.Where("list_id = ?", listID)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchValue, searchValue)
	}

	ordering := strings.TrimSpace(c.Query("ordering", "-created_at"))
	direction := "ASC"
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		ordering = ordering[1:]
	}
	column, ok := orderableTaskColumns[ordering]
	if !ok {
		return utils.Error(c, fiber.StatusBadRequest, "unsupported ordering field")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting tasks")
	}

	p := utils.ParsePagination(c)
	var tasks []models.Task
	if err := utils.ApplyPagination(query.Order(column+" "+direction+", id "+direction), p).Find(&tasks).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing tasks")
	}
	if err := annotateTasks(h.DB, taskRefs(tasks)...); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task lists")
	}

	return utils.Paginated(c, tasks, p.Page, p.Limit, total)
}

func (h *TasksHandler) liveTasks(ownerID uuid.UUID) *gorm.DB {
	return h.DB.Where("owner_id = ? AND soft_deleted = ?", ownerID, false)
}

// Today returns pending tasks due on the current calendar date plus the
// undated backlog.
func (h *TasksHandler) Today(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var tasks []models.Task
	err := h.liveTasks(currentUser.ID).
		Where("is_completed = ?", false).
		Where("(due_date >= ? AND due_date < ?) OR due_date IS NULL", dayStart, dayEnd).
		Order("created_at DESC, id DESC").
		Find(&tasks).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing today's tasks")
	}
	if err := annotateTasks(h.DB, taskRefs(tasks)...); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task lists")
	}

	return utils.Success(c, fiber.StatusOK, tasks)
}

func (h *TasksHandler) Overdue(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var tasks []models.Task
	err := h.liveTasks(currentUser.ID).
		Where("due_date < ? AND is_completed = ?", time.Now(), false).
		Order("due_date ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing overdue tasks")
	}
	if err := annotateTasks(h.DB, taskRefs(tasks)...); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task lists")
	}

	return utils.Success(c, fiber.StatusOK, tasks)
}

func (h *TasksHandler) Completed(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var tasks []models.Task
	err := h.liveTasks(currentUser.ID).
		Where("is_completed = ?", true).
		Order("completed_at DESC, id DESC").
		Find(&tasks).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing completed tasks")
	}
	if err := annotateTasks(h.DB, taskRefs(tasks)...); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task lists")
	}

	return utils.Success(c, fiber.StatusOK, tasks)
}

func (h *TasksHandler) getOwnedTask(ownerID, taskID uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := h.DB.First(&task, "id = ? AND owner_id = ? AND soft_deleted = ?", taskID, ownerID, false).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (h *TasksHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.getOwnedTask(currentUser.ID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task")
	}

	if err := annotateTasks(h.DB, task); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task list")
	}

	return utils.Success(c, fiber.StatusOK, task)
}

func (h *TasksHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	if _, err := h.getOwnedTask(currentUser.ID, taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task")
	}

	var req taskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	// Parsed pointers cannot tell "listID": null from an absent key, and an
	// explicit null is how a task moves back to the inbox or loses its
	// deadline. The raw body keeps that distinction.
	var rawFields map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &rawFields); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return utils.ValidationFailed(c, map[string]string{"title": "title cannot be empty"})
	}
	fieldErrors, err := h.validateTaskFields(currentUser.ID, &req)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating task")
	}
	if fieldErrors != nil {
		return utils.ValidationFailed(c, fieldErrors)
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	} else if jsonNull(rawFields, "dueDate") {
		updates["due_date"] = nil
	}
	if req.PriorityLevel != nil {
		updates["priority_level"] = *req.PriorityLevel
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}
	if req.RoutineType != nil {
		updates["routine_type"] = *req.RoutineType
	}
	if req.ListID != nil {
		updates["list_id"] = *req.ListID
	} else if jsonNull(rawFields, "listID") {
		updates["list_id"] = nil
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

	if err := h.DB.Model(&models.Task{}).Where("id = ?", taskID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating task")
	}

	var updated models.Task
	if err := h.DB.First(&updated, "id = ?", taskID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated task")
	}
	if err := annotateTasks(h.DB, &updated); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task list")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

type completeTaskRequest struct {
	IsCompleted bool `json:"isCompleted"`
}

// Complete flips the completion flag. completed_at is set exactly on the
// false->true transition and cleared on true->false; matching state is a
// no-op so repeated calls are safe.
func (h *TasksHandler) Complete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.getOwnedTask(currentUser.ID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task")
	}

	var req completeTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.IsCompleted == task.IsCompleted {
		if err := annotateTasks(h.DB, task); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading task list")
		}
		return utils.Success(c, fiber.StatusOK, task)
	}

	updates := map[string]interface{}{"is_completed": req.IsCompleted}
	if req.IsCompleted {
		updates["completed_at"] = time.Now().UTC()
	} else {
		updates["completed_at"] = nil
	}

	if err := h.DB.Model(task).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating task")
	}

	if req.IsCompleted {
		h.Activities.Record(currentUser.ID, "task_completed", "task", &task.ID, map[string]interface{}{
			"title": task.Title,
		})
	}

	var updated models.Task
	if err := h.DB.First(&updated, "id = ?", taskID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated task")
	}
	if err := annotateTasks(h.DB, &updated); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task list")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

// ToggleDelete flips the soft-delete flag. Unlike the other task routes it
// matches soft-deleted rows too, otherwise nothing could ever be restored.
func (h *TasksHandler) ToggleDelete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	taskID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	var task models.Task
	if err := h.DB.First(&task, "id = ? AND owner_id = ?", taskID, currentUser.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task")
	}

	newState := !task.SoftDeleted
	if err := h.DB.Model(&task).Update("soft_deleted", newState).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating task")
	}

	action := "task_soft_deleted"
	if !newState {
		action = "task_restored"
	}
	h.Activities.Record(currentUser.ID, action, "task", &task.ID, nil)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"softDeleted": newState})
}
