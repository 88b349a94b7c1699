package services

import (
	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityService records per-user events off the request path. Writes go
// through a buffered queue; a full queue drops the event rather than slowing
// the request down.
type ActivityService struct {
	DB    *gorm.DB
	queue chan models.Activity
}

func NewActivityService(db *gorm.DB) *ActivityService {
	s := &ActivityService{
		DB:    db,
		queue: make(chan models.Activity, 1000),
	}
	go s.processQueue()
	return s
}

func (s *ActivityService) Record(userID uuid.UUID, action, resourceType string, resourceID *uuid.UUID, details map[string]interface{}) {
	row := models.Activity{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("activity_queue_full", map[string]interface{}{
			"action":  action,
			"dropped": true,
		})
	}
}

func (s *ActivityService) processQueue() {
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("activity_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}
