package dto

import (
	"time"

	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/services"
	"github.com/yukikurage/edu-project-api/internal/utils"
)

// NotificationDTO represents a notification in API responses
type NotificationDTO struct {
	ID          uint64    `json:"id"`
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	IsRead      bool      `json:"is_read"`
	RelatedID   *uint64   `json:"related_id,omitempty"`
	RelatedType *string   `json:"related_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationListResponse represents a page of notifications
type NotificationListResponse struct {
	Notifications []NotificationDTO        `json:"notifications"`
	Pagination    utils.PaginationResponse `json:"pagination"`
}

// ReminderDTO represents a reminder in API responses
type ReminderDTO struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
	IsActive    bool      `json:"is_active"`
	RelatedID   *uint64   `json:"related_id,omitempty"`
	RelatedType *string   `json:"related_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SchedulerStatusDTO reports the reminder scheduler state
type SchedulerStatusDTO struct {
	Running    bool       `json:"running"`
	NextSweep  *time.Time `json:"next_sweep"`
	ActiveJobs int        `json:"active_jobs"`
}

// ToNotificationDTO converts a Notification model
func ToNotificationDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          n.ID,
		Message:     n.Message,
		Type:        n.Type,
		IsRead:      n.IsRead,
		RelatedID:   n.RelatedID,
		RelatedType: n.RelatedType,
		CreatedAt:   n.CreatedAt,
	}
}

// ToNotificationListResponse converts a page of notifications
func ToNotificationListResponse(notifications []models.Notification, params utils.PaginationParams, total int64) NotificationListResponse {
	items := make([]NotificationDTO, len(notifications))
	for i, n := range notifications {
		items[i] = ToNotificationDTO(n)
	}
	return NotificationListResponse{
		Notifications: items,
		Pagination:    params.Response(total),
	}
}

// ToReminderDTO converts a Reminder model
func ToReminderDTO(r models.Reminder) ReminderDTO {
	return ReminderDTO{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		ScheduledAt: r.ScheduledAt,
		IsActive:    r.IsActive,
		RelatedID:   r.RelatedID,
		RelatedType: r.RelatedType,
		CreatedAt:   r.CreatedAt,
	}
}

// ToReminderDTOs converts a slice of reminders
func ToReminderDTOs(reminders []models.Reminder) []ReminderDTO {
	items := make([]ReminderDTO, len(reminders))
	for i, r := range reminders {
		items[i] = ToReminderDTO(r)
	}
	return items
}

// ToSchedulerStatusDTO converts a scheduler snapshot
func ToSchedulerStatusDTO(status services.SchedulerStatus) SchedulerStatusDTO {
	return SchedulerStatusDTO{
		Running:    status.Running,
		NextSweep:  status.NextSweep,
		ActiveJobs: status.ActiveJobs,
	}
}
