package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/edu-project-api/internal/dto"
	apierrors "github.com/yukikurage/edu-project-api/internal/errors"
	"github.com/yukikurage/edu-project-api/internal/middleware"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/services"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns the tutor's grouped tasks, or the tasks visible to any
// other user. Can filter by project_id and status.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	input := services.ListTasksInput{UserID: userID}
	if projectIDStr := c.Query("project_id"); projectIDStr != "" {
		projectID, err := strconv.ParseUint(projectIDStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project_id")
			return
		}
		input.ProjectID = &projectID
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkStatus(statusStr)
		input.Status = &status
	}

	if middleware.IsTutor(c) {
		groups, err := h.taskService.ListTutorTaskGroups(c.Request.Context(), input)
		if err != nil {
			apierrors.RespondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.ToTaskGroupListResponse(groups))
		return
	}

	tasks, err := h.taskService.ListTasksForUser(c.Request.Context(), input)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TaskListResponse{Tasks: dto.ToTaskDTOs(tasks)})
}

// GetTask returns a specific task by ID. Tutors get the whole logical group
// the row belongs to.
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if middleware.IsTutor(c) {
		group, err := h.taskService.GetTaskGroup(c.Request.Context(), taskID, userID)
		if err != nil {
			apierrors.RespondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, group)
		return
	}

	task, err := h.taskService.GetTaskForUser(c.Request.Context(), taskID, userID)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates one task row per responsible
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		Name           string     `json:"name" binding:"required"`
		Description    string     `json:"description"`
		DueDate        *time.Time `json:"due_date"`
		Priority       string     `json:"priority"`
		Type           string     `json:"type"`
		Status         string     `json:"status"`
		ProjectID      *uint64    `json:"project_id"`
		ResponsibleIDs []uint64   `json:"responsible_ids"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	tasks, err := h.taskService.CreateTask(c.Request.Context(), services.CreateTaskInput{
		TutorID:        userID,
		Name:           req.Name,
		Description:    req.Description,
		DueDate:        req.DueDate,
		Priority:       models.TaskPriority(req.Priority),
		Type:           req.Type,
		Status:         models.WorkStatus(req.Status),
		ProjectID:      req.ProjectID,
		ResponsibleIDs: req.ResponsibleIDs,
	})
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.TaskListResponse{Tasks: dto.ToTaskDTOs(tasks)})
}

// UpdateTask updates an existing task row. The responsible student may only
// send a status.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	// Parse raw JSON to detect which fields were sent
	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input, err := parseTaskUpdate(rawReq)
	if err != nil {
		apierrors.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), taskID, userID, input)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task row
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := parseIDParam(c, "id", "task")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), taskID, userID); err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

type fieldError string

func (e fieldError) Error() string { return string(e) }

func stringField(raw map[string]any, key string) (*string, error) {
	value, ok := raw[key]
	if !ok {
		return nil, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, fieldError("Invalid " + key)
	}
	return &s, nil
}

// parseTaskUpdate keeps only the fields present in the body. A null due_date
// clears it.
func parseTaskUpdate(raw map[string]any) (services.UpdateTaskInput, error) {
	var input services.UpdateTaskInput
	var err error

	if input.Name, err = stringField(raw, "name"); err != nil {
		return input, err
	}
	if input.Description, err = stringField(raw, "description"); err != nil {
		return input, err
	}
	if input.Type, err = stringField(raw, "type"); err != nil {
		return input, err
	}

	priority, err := stringField(raw, "priority")
	if err != nil {
		return input, err
	}
	if priority != nil {
		p := models.TaskPriority(*priority)
		input.Priority = &p
	}

	status, err := stringField(raw, "status")
	if err != nil {
		return input, err
	}
	if status != nil {
		s := models.WorkStatus(*status)
		input.Status = &s
	}

	if value, ok := raw["due_date"]; ok {
		if value == nil {
			input.ClearDueDate = true
		} else {
			dueDateStr, ok := value.(string)
			if !ok {
				return input, fieldError("Invalid due_date")
			}
			parsedTime, err := time.Parse(time.RFC3339, dueDateStr)
			if err != nil {
				return input, fieldError("Invalid due_date")
			}
			input.DueDate = &parsedTime
		}
	}

	return input, nil
}
