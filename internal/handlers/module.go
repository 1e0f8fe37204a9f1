package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/repos"
)

type ModuleHandler struct {
	log        *logger.Logger
	modules    repos.ModuleRepo
	flashcards repos.FlashcardSetRepo
	mindMaps   repos.MindMapRepo
	podcasts   repos.PodcastSessionRepo
	quizzes    repos.QuizSetRepo
	runs       repos.PipelineRunRepo
}

func NewModuleHandler(
	log *logger.Logger,
	modules repos.ModuleRepo,
	flashcards repos.FlashcardSetRepo,
	mindMaps repos.MindMapRepo,
	podcasts repos.PodcastSessionRepo,
	quizzes repos.QuizSetRepo,
	runs repos.PipelineRunRepo,
) *ModuleHandler {
	return &ModuleHandler{
		log:        log.With("handler", "ModuleHandler"),
		modules:    modules,
		flashcards: flashcards,
		mindMaps:   mindMaps,
		podcasts:   podcasts,
		quizzes:    quizzes,
		runs:       runs,
	}
}

// GET /api/modules?user_id=...
func (h *ModuleHandler) ListModules(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	modules, err := h.modules.GetByUserID(c.Request.Context(), nil, userID)
	if err != nil {
		h.log.Error("list modules failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

// GET /api/modules/:id
// Detailed view: the module plus every submodule that was persisted for it.
func (h *ModuleHandler) GetModule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid module id"})
		return
	}
	ctx := c.Request.Context()

	modules, err := h.modules.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil && err != gorm.ErrRecordNotFound {
		h.log.Error("get module failed", "module_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if len(modules) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "module not found"})
		return
	}
	module := modules[0]

	moduleIDs := []uuid.UUID{module.ID}
	flashcards, err := h.flashcards.GetByModuleIDs(ctx, nil, moduleIDs)
	if err != nil {
		h.log.Error("load flashcards failed", "module_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	mindMaps, err := h.mindMaps.GetByModuleIDs(ctx, nil, moduleIDs)
	if err != nil {
		h.log.Error("load mind maps failed", "module_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	podcasts, err := h.podcasts.GetByModuleIDs(ctx, nil, moduleIDs)
	if err != nil {
		h.log.Error("load podcasts failed", "module_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	quizzes, err := h.quizzes.GetByModuleIDs(ctx, nil, moduleIDs)
	if err != nil {
		h.log.Error("load quizzes failed", "module_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"module":     module,
		"flashcards": flashcards,
		"mind_maps":  mindMaps,
		"podcasts":   podcasts,
		"quizzes":    quizzes,
	})
}

// GET /api/uploads/:id/runs
// Pipeline audit trail for an upload, including cost reports of failed runs.
func (h *ModuleHandler) GetUploadRuns(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return
	}
	runs, err := h.runs.GetByUploadID(c.Request.Context(), nil, id)
	if err != nil {
		h.log.Error("load runs failed", "upload_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
