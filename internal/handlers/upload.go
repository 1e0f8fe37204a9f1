package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peterhyland0/adaptive-learning-backend/internal/logger"
	"github.com/peterhyland0/adaptive-learning-backend/internal/services"
	"github.com/peterhyland0/adaptive-learning-backend/internal/types"
)

type UploadHandler struct {
	log      *logger.Logger
	pipeline services.PipelineOrchestrator
}

func NewUploadHandler(log *logger.Logger, pipeline services.PipelineOrchestrator) *UploadHandler {
	return &UploadHandler{
		log:      log.With("handler", "UploadHandler"),
		pipeline: pipeline,
	}
}

// POST /api/uploads
// Multipart form: "file" plus "user_id" and repeated "styles" fields. Runs
// the whole pipeline synchronously; progress streams over SSE meanwhile.
func (h *UploadHandler) Upload(c *gin.Context) {
	userID, err := uuid.Parse(c.PostForm("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}

	var styles []types.StyleLabel
	for _, raw := range c.PostFormArray("styles") {
		style, ok := types.ParseStyleLabel(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown style " + raw})
			return
		}
		styles = append(styles, style)
	}

	result, err := h.pipeline.ProcessUpload(c.Request.Context(), &services.UploadRequest{
		UserID:       userID,
		OriginalName: fileHeader.Filename,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		Data:         data,
		StylePrefs:   styles,
	})
	if err != nil {
		h.log.Warn("upload processing failed", "user_id", userID, "file", fileHeader.Filename, "error", err)
		// A failed run still carries its cost report for the caller.
		if result != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "result": result})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
