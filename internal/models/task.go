package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Task is one physical task row. A task handed to several students is stored
// as one row per responsible student sharing the same definition fields.
type Task struct {
	ID            uint64         `gorm:"primarykey" json:"id"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	DueDate       *time.Time     `gorm:"index" json:"due_date"`
	Priority      TaskPriority   `gorm:"type:varchar(20)" json:"priority"`
	Type          string         `gorm:"type:varchar(50)" json:"type"`
	Status        WorkStatus     `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	ProjectID     *uint64        `gorm:"index" json:"project_id"`
	TutorID       uint64         `gorm:"not null;index" json:"tutor_id"`
	ResponsibleID *uint64        `gorm:"index" json:"responsible_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project     *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Tutor       User     `gorm:"foreignKey:TutorID" json:"-"`
	Responsible *User    `gorm:"foreignKey:ResponsibleID" json:"responsible,omitempty"`
}
