package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity is an append-only record of what a user did to their own data.
// It does NOT use BaseModel because activity rows are never updated or
// soft-deleted.
type Activity struct {
	ID           uuid.UUID              `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID              `json:"userID" gorm:"type:uuid;not null;index"`
	Action       string                 `json:"action" gorm:"type:varchar(50);not null;index"`
	ResourceType string                 `json:"resourceType" gorm:"type:varchar(30);not null"`
	ResourceID   *uuid.UUID             `json:"resourceID,omitempty" gorm:"type:uuid"`
	Details      map[string]interface{} `json:"details,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time              `json:"createdAt" gorm:"not null;index"`
}

func (a *Activity) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (Activity) TableName() string {
	return "activities"
}
