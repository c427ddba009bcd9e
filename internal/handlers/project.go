package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/edu-project-api/internal/dto"
	apierrors "github.com/yukikurage/edu-project-api/internal/errors"
	"github.com/yukikurage/edu-project-api/internal/middleware"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/services"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// CreateProject creates a new project owned by the current tutor
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateProjectRequest struct {
		Name        string     `json:"name" binding:"required"`
		Description string     `json:"description"`
		EndDate     *time.Time `json:"end_date"`
		Status      string     `json:"status"`
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), services.CreateProjectInput{
		TutorID:     userID,
		Name:        req.Name,
		Description: req.Description,
		EndDate:     req.EndDate,
		Status:      models.WorkStatus(req.Status),
	})
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDTO(*project, true))
}

// ListProjects returns every project the user tutors or participates in
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projects, err := h.projectService.ListProjectsForUser(c.Request.Context(), userID)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": dto.ToProjectDTOs(projects, userID),
	})
}

// GetProject returns project details with participants.
// The project is already loaded by RequireProjectAccess.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}
	userID, _ := middleware.GetUserID(c)

	_, participants, err := h.projectService.GetProjectWithParticipants(c.Request.Context(), project.ID)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDetailDTO(project, participants, userID))
}

// UpdateProject applies a partial update
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id", "project")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type UpdateProjectRequest struct {
		Name         *string    `json:"name"`
		Description  *string    `json:"description"`
		EndDate      *time.Time `json:"end_date"`
		ClearEndDate bool       `json:"clear_end_date"`
		Status       *string    `json:"status"`
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.UpdateProjectInput{
		Name:         req.Name,
		Description:  req.Description,
		EndDate:      req.EndDate,
		ClearEndDate: req.ClearEndDate,
	}
	if req.Status != nil {
		status := models.WorkStatus(*req.Status)
		input.Status = &status
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), projectID, userID, input)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*project, true))
}

// DeleteProject deletes the project; its tasks are detached
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id", "project")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), projectID, userID); err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}

// JoinProject adds the current user to a project by invite code
func (h *ProjectHandler) JoinProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type JoinRequest struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.JoinProjectByInvite(c.Request.Context(), userID, req.InviteCode)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*project, false))
}

// RegenerateInviteCode replaces the project's invite code
func (h *ProjectHandler) RegenerateInviteCode(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id", "project")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	project, err := h.projectService.RegenerateInviteCode(c.Request.Context(), projectID, userID)
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invite_code": project.InviteCode})
}

// RemoveParticipant removes a participant from the project
func (h *ProjectHandler) RemoveParticipant(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id", "project")
	if !ok {
		return
	}
	targetID, ok := parseIDParam(c, "userId", "user")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.projectService.RemoveParticipant(c.Request.Context(), projectID, userID, targetID); err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Participant removed successfully"})
}
