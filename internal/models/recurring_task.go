package models

import (
	"time"

	"github.com/google/uuid"
)

// RecurringTask is a stored template only. Nothing in the backend generates
// tasks from it; generation is a client/scheduler concern that never shipped.
type RecurringTask struct {
	BaseModel
	OwnerID       uuid.UUID              `json:"ownerID" gorm:"type:uuid;not null;index"`
	Title         string                 `json:"title" gorm:"type:varchar(255);not null"`
	Description   string                 `json:"description" gorm:"type:text;not null;default:''"`
	DayOfWeek     int                    `json:"dayOfWeek" gorm:"not null;default:0"`
	DueDate       *time.Time             `json:"dueDate,omitempty"`
	IsActive      bool                   `json:"isActive" gorm:"not null;default:false"`
	PriorityLevel int                    `json:"priorityLevel" gorm:"not null;default:3"`
	Metadata      map[string]interface{} `json:"metadata" gorm:"type:jsonb;serializer:json"`
	SoftDeleted   bool                   `json:"softDeleted" gorm:"not null;default:false;index"`

	Owner User   `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
	Tasks []Task `json:"-" gorm:"foreignKey:RecurringTaskID"`
}

func (RecurringTask) TableName() string {
	return "recurring_tasks"
}
