package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/services"
)

type ClassifyHandler struct {
	log        *logger.Logger
	classifier services.StyleClassifierService
}

func NewClassifyHandler(log *logger.Logger, classifier services.StyleClassifierService) *ClassifyHandler {
	return &ClassifyHandler{
		log:        log.With("handler", "ClassifyHandler"),
		classifier: classifier,
	}
}

type classifyRequest struct {
	UserID  string   `json:"user_id" binding:"required"`
	Answers []string `json:"answers" binding:"required"`
}

// POST /api/classify
// Score a completed 16-answer questionnaire and upsert the style profile.
func (h *ClassifyHandler) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	profile, err := h.classifier.Classify(c.Request.Context(), userID, req.Answers)
	if err != nil {
		h.log.Warn("classification failed", "user_id", userID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scores":        profile.Scores(),
		"dominant":      profile.Dominant,
		"model_version": profile.ModelVersion,
	})
}
