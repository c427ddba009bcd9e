package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/edu-project-api/internal/constants"
	apierrors "github.com/yukikurage/edu-project-api/internal/errors"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/services"
)

// RequireProjectAccess checks if the user is the tutor or a participant of the project
func RequireProjectAccess(projectService *services.ProjectService) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		project, err := projectService.GetProject(c.Request.Context(), projectID)
		if err != nil {
			apierrors.RespondServiceError(c, err)
			c.Abort()
			return
		}

		member, err := projectService.IsMember(c.Request.Context(), project, userID)
		if err != nil {
			apierrors.RespondServiceError(c, err)
			c.Abort()
			return
		}
		if !member {
			// Return 404 instead of 403 to avoid leaking project existence
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyProject, *project)
		c.Next()
	}
}

// RequireProjectTutor checks if the user is the tutor of the project.
// Must run after RequireProjectAccess.
func RequireProjectTutor() gin.HandlerFunc {
	return func(c *gin.Context) {
		project, ok := GetProject(c)
		if !ok {
			apierrors.Forbidden(c, "Project access required")
			c.Abort()
			return
		}

		userID, _ := GetUserID(c)
		if project.TutorID != userID {
			apierrors.Forbidden(c, "Only the project tutor can perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetProject retrieves the project stored by RequireProjectAccess
func GetProject(c *gin.Context) (models.Project, bool) {
	value, exists := c.Get(constants.ContextKeyProject)
	if !exists {
		return models.Project{}, false
	}
	project, ok := value.(models.Project)
	return project, ok
}
