package models

import (
	"time"

	"github.com/google/uuid"
)

type RoutineType string

const (
	RoutineOnce    RoutineType = "once"
	RoutineDaily   RoutineType = "daily"
	RoutineWeekly  RoutineType = "weekly"
	RoutineMonthly RoutineType = "monthly"
)

func IsValidRoutineType(value RoutineType) bool {
	switch value {
	case RoutineOnce, RoutineDaily, RoutineWeekly, RoutineMonthly:
		return true
	default:
		return false
	}
}

const (
	MinPriority = 1
	MaxPriority = 5
)

type Task struct {
	BaseModel
	OwnerID         uuid.UUID              `json:"ownerID" gorm:"type:uuid;not null;index"`
	ListID          *uuid.UUID             `json:"listID,omitempty" gorm:"type:uuid;index"`
	RecurringTaskID *uuid.UUID             `json:"recurringTaskID,omitempty" gorm:"type:uuid;index"`
	Title           string                 `json:"title" gorm:"type:varchar(255);not null"`
	Description     string                 `json:"description" gorm:"type:text;not null;default:''"`
	DueDate         *time.Time             `json:"dueDate,omitempty"`
	IsCompleted     bool                   `json:"isCompleted" gorm:"not null;default:false;index"`
	CompletedAt     *time.Time             `json:"completedAt,omitempty"`
	PriorityLevel   int                    `json:"priorityLevel" gorm:"not null;default:3"`
	Color           Color                  `json:"color" gorm:"type:varchar(20);not null;default:'blue'"`
	RoutineType     RoutineType            `json:"routineType" gorm:"type:varchar(20);not null;default:'once'"`
	SortOrder       int                    `json:"sortOrder" gorm:"not null;default:0"`
	Metadata        map[string]interface{} `json:"metadata" gorm:"type:jsonb;serializer:json"`
	SoftDeleted     bool                   `json:"softDeleted" gorm:"not null;default:false;index"`

	Owner         User           `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
	List          *List          `json:"-" gorm:"foreignKey:ListID;references:ID"`
	RecurringTask *RecurringTask `json:"-" gorm:"foreignKey:RecurringTaskID;references:ID"`

	// Derived fields filled in by task queries, never persisted.
	ListName  string `json:"listName,omitempty" gorm:"-"`
	ListColor Color  `json:"listColor,omitempty" gorm:"-"`
	Overdue   bool   `json:"isOverdue" gorm:"-"`
}

func (Task) TableName() string {
	return "tasks"
}

// IsOverdue is never true for completed tasks, no matter how old the due date.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.IsCompleted || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(now)
}
