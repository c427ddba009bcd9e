package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/edu-project-api/internal/dto"
	apierrors "github.com/yukikurage/edu-project-api/internal/errors"
	"github.com/yukikurage/edu-project-api/internal/services"
)

// ReminderHandler exposes reminder CRUD and the scheduler status.
type ReminderHandler struct {
	scheduler *services.ReminderScheduler
}

func NewReminderHandler(scheduler *services.ReminderScheduler) *ReminderHandler {
	return &ReminderHandler{scheduler: scheduler}
}

// CreateReminder stores and schedules a reminder for the current user
func (h *ReminderHandler) CreateReminder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateReminderRequest struct {
		Title       string    `json:"title" binding:"required"`
		Description string    `json:"description"`
		ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
		RelatedID   *uint64   `json:"related_id"`
		RelatedType *string   `json:"related_type"`
	}

	var req CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	reminder, err := h.scheduler.CreateReminder(c.Request.Context(), services.CreateReminderInput{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
		RelatedID:   req.RelatedID,
		RelatedType: req.RelatedType,
	})
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToReminderDTO(*reminder))
}

// ListReminders returns the user's reminders. active=true hides fired ones.
func (h *ReminderHandler) ListReminders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	reminders, err := h.scheduler.ListReminders(c.Request.Context(), userID, c.Query("active") == "true")
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reminders": dto.ToReminderDTOs(reminders)})
}

// GetReminder returns one reminder owned by the user
func (h *ReminderHandler) GetReminder(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "reminder")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	reminder, err := h.scheduler.GetReminder(c.Request.Context(), id, userID)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToReminderDTO(*reminder))
}

// UpdateReminder applies a partial update and reschedules when needed
func (h *ReminderHandler) UpdateReminder(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "reminder")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type UpdateReminderRequest struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		ScheduledAt *time.Time `json:"scheduled_at"`
		IsActive    *bool      `json:"is_active"`
	}

	var req UpdateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	reminder, err := h.scheduler.UpdateReminder(c.Request.Context(), id, userID, services.UpdateReminderInput{
		Title:       req.Title,
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
		IsActive:    req.IsActive,
	})
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToReminderDTO(*reminder))
}

// DeleteReminder cancels the job and deletes the reminder
func (h *ReminderHandler) DeleteReminder(c *gin.Context) {
	id, ok := parseIDParam(c, "id", "reminder")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.scheduler.DeleteReminder(c.Request.Context(), id, userID); err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reminder deleted successfully"})
}

// ScheduleCustomReminder schedules a one-off message without a stored reminder
func (h *ReminderHandler) ScheduleCustomReminder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CustomReminderRequest struct {
		Message     string    `json:"message" binding:"required"`
		ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
		RelatedID   *uint64   `json:"related_id"`
		RelatedType *string   `json:"related_type"`
	}

	var req CustomReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	jobID, err := h.scheduler.ScheduleCustomReminder(c.Request.Context(), services.CustomReminderInput{
		UserID:      userID,
		Message:     req.Message,
		ScheduledAt: req.ScheduledAt,
		RelatedID:   req.RelatedID,
		RelatedType: req.RelatedType,
	})
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job_id": jobID})
}

// CancelCustomReminder cancels a pending one-off reminder
func (h *ReminderHandler) CancelCustomReminder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.scheduler.CancelCustomReminder(c.Param("jobId"), userID); err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reminder cancelled"})
}

// SchedulerStatus reports whether the scheduler runs and how many jobs wait
func (h *ReminderHandler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ToSchedulerStatusDTO(h.scheduler.Status()))
}
