package models

import "time"

// Notification type tags
const (
	NotificationTypeInfo             = "info"
	NotificationTypeTaskAssigned     = "task_assigned"
	NotificationTypeTaskUpdated      = "task_updated"
	NotificationTypeTaskDeleted      = "task_deleted"
	NotificationTypeTaskStatus       = "task_status_changed"
	NotificationTypeProjectUpdated   = "project_updated"
	NotificationTypeProjectJoined    = "project_joined"
	NotificationTypeExamSubmitted    = "exam_submitted"
	NotificationTypeReminder         = "reminder"
	NotificationTypeCustomReminder   = "custom_reminder"
	NotificationTypeDeadlineReminder = "deadline_reminder"
)

// Related entity tags
const (
	RelatedTypeTask    = "task"
	RelatedTypeProject = "project"
)

// Notification is immutable after creation except for IsRead.
type Notification struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	UserID      uint64    `gorm:"not null;index" json:"user_id"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Type        string    `gorm:"type:varchar(50);not null" json:"type"`
	IsRead      bool      `gorm:"not null;default:false" json:"is_read"`
	RelatedID   *uint64   `json:"related_id,omitempty"`
	RelatedType *string   `gorm:"type:varchar(50)" json:"related_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
