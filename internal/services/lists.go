package services

import (
	"errors"

	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrListNotFound  = errors.New("list not found")
	ErrListNameTaken = errors.New("a list with this name already exists")
)

const defaultListName = "Inbox"

// ListService owns every multi-row list mutation so the one-default-per-user
// invariant lives in exactly one place.
type ListService struct {
	DB *gorm.DB
}

func NewListService(db *gorm.DB) *ListService {
	return &ListService{DB: db}
}

// ProvisionDefaults creates the user's Inbox list. Called inside the
// registration (or first social login) transaction.
func (s *ListService) ProvisionDefaults(tx *gorm.DB, user *models.User) error {
	inbox := models.List{
		OwnerID:   user.ID,
		Name:      defaultListName,
		Color:     models.ColorBlue,
		IsDefault: true,
		Metadata:  map[string]interface{}{},
	}
	return tx.Create(&inbox).Error
}

// SetDefault atomically demotes every other live list of the owner and
// promotes the target. Concurrent swaps for the same owner serialize on the
// updated rows, so the owner always ends up with exactly one default.
func (s *ListService) SetDefault(ownerID, listID uuid.UUID) (*models.List, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.List{}).
			Where("owner_id = ? AND is_default = ? AND soft_deleted = ? AND id <> ?", ownerID, true, false, listID).
			Update("is_default", false).Error; err != nil {
			return err
		}

		result := tx.Model(&models.List{}).
			Where("id = ? AND owner_id = ? AND soft_deleted = ?", listID, ownerID, false).
			Update("is_default", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrListNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var list models.List
	if err := s.DB.First(&list, "id = ?", listID).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(ownerID.String(), "list_set_default", map[string]interface{}{
		"list_id": listID.String(),
	})

	return &list, nil
}

// SoftDelete marks the list deleted and detaches its tasks in one
// transaction. Tasks are never deleted with their list; they fall back to the
// inbox (list_id = NULL).
func (s *ListService) SoftDelete(ownerID, listID uuid.UUID) (detached int64, err error) {
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.List{}).
			Where("id = ? AND owner_id = ? AND soft_deleted = ?", listID, ownerID, false).
			Update("soft_deleted", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrListNotFound
		}

		tasks := tx.Model(&models.Task{}).
			Where("list_id = ? AND owner_id = ?", listID, ownerID).
			Update("list_id", nil)
		if tasks.Error != nil {
			return tasks.Error
		}
		detached = tasks.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.InfoWithUser(ownerID.String(), "list_soft_deleted", map[string]interface{}{
		"list_id":        listID.String(),
		"tasks_detached": detached,
	})

	return detached, nil
}

// NameAvailable reports whether the owner can use the name, optionally
// ignoring one list (for renames). Only live lists occupy a name.
func (s *ListService) NameAvailable(ownerID uuid.UUID, name string, exclude *uuid.UUID) (bool, error) {
	query := s.DB.Model(&models.List{}).
		Where("owner_id = ? AND name = ? AND soft_deleted = ?", ownerID, name, false)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}
