package models

import "github.com/google/uuid"

type List struct {
	BaseModel
	OwnerID     uuid.UUID              `json:"ownerID" gorm:"type:uuid;not null;index"`
	Name        string                 `json:"name" gorm:"type:varchar(255);not null"`
	Description *string                `json:"description,omitempty" gorm:"type:text"`
	Color       Color                  `json:"color" gorm:"type:varchar(20);not null;default:'blue'"`
	Icon        *string                `json:"icon,omitempty" gorm:"type:varchar(50)"`
	IsDefault   bool                   `json:"isDefault" gorm:"not null;default:false;index"`
	SortOrder   int                    `json:"sortOrder" gorm:"not null;default:0"`
	Metadata    map[string]interface{} `json:"metadata" gorm:"type:jsonb;serializer:json"`
	SoftDeleted bool                   `json:"softDeleted" gorm:"not null;default:false;index"`

	Owner User   `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
	Tasks []Task `json:"-" gorm:"foreignKey:ListID"`

	// Counters filled in by list queries, never persisted.
	TaskCount          int64 `json:"taskCount" gorm:"-"`
	CompletedTaskCount int64 `json:"completedTaskCount" gorm:"-"`
	PendingTaskCount   int64 `json:"pendingTaskCount" gorm:"-"`
}

func (List) TableName() string {
	return "lists"
}
