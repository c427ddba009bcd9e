package dto

import (
	"time"

	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/services"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID          uint64          `json:"id"`
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	Role        models.UserRole `json:"role"`
}

// TaskDTO represents a single task row in API responses
type TaskDTO struct {
	ID            uint64              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	DueDate       *time.Time          `json:"due_date"`
	Priority      models.TaskPriority `json:"priority"`
	Type          string              `json:"type"`
	Status        models.WorkStatus   `json:"status"`
	ProjectID     *uint64             `json:"project_id"`
	TutorID       uint64              `json:"tutor_id"`
	ResponsibleID *uint64             `json:"responsible_id"`
	Responsible   *UserDTO            `json:"responsible,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TaskGroupListResponse is the tutor's task list
type TaskGroupListResponse struct {
	Groups []services.LogicalTaskGroup `json:"groups"`
}

// TaskListResponse is a student's task list
type TaskListResponse struct {
	Tasks []TaskDTO `json:"tasks"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:            task.ID,
		Name:          task.Name,
		Description:   task.Description,
		DueDate:       task.DueDate,
		Priority:      task.Priority,
		Type:          task.Type,
		Status:        task.Status,
		ProjectID:     task.ProjectID,
		TutorID:       task.TutorID,
		ResponsibleID: task.ResponsibleID,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}

	// Include responsible if preloaded
	if task.Responsible != nil && task.Responsible.ID != 0 {
		responsible := ToUserDTO(*task.Responsible)
		dto.Responsible = &responsible
	}

	return dto
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}
	return items
}

// ToTaskGroupListResponse wraps grouped tasks, never returning a null list
func ToTaskGroupListResponse(groups []services.LogicalTaskGroup) TaskGroupListResponse {
	if groups == nil {
		groups = []services.LogicalTaskGroup{}
	}
	return TaskGroupListResponse{Groups: groups}
}
