package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/edu-project-api/internal/errors"
	"github.com/yukikurage/edu-project-api/internal/services"
)

type ExamHandler struct {
	aiService *services.AIService
}

func NewExamHandler(aiService *services.AIService) *ExamHandler {
	return &ExamHandler{aiService: aiService}
}

// GenerateQuestions drafts multiple choice questions for a topic using AI
func (h *ExamHandler) GenerateQuestions(c *gin.Context) {
	type GenerateQuestionsRequest struct {
		Topic string `json:"topic" binding:"required"`
		Count int    `json:"count" binding:"required"`
	}

	var req GenerateQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	questions, err := h.aiService.GenerateExamQuestions(c.Request.Context(), services.GenerateExamQuestionsInput{
		Topic: req.Topic,
		Count: req.Count,
	})
	if err != nil {
		apierrors.RespondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
	})
}
