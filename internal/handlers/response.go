package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/peterhyland0/adaptive-learning-backend/internal/services"
)

// statusFor maps the pipeline's error taxonomy onto HTTP statuses. Upstream
// generation failures surface as 502 since the fault is the model provider's.
func statusFor(err error) int {
	var (
		invalid    *services.InvalidInputError
		extraction *services.ExtractionError
		generation *services.GenerationSchemaError
		synthesis  *services.SynthesisError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &extraction):
		return http.StatusUnprocessableEntity
	case errors.As(err, &generation), errors.As(err, &synthesis):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
