package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"imgtutu/internal/model"
)

// writeError maps domain sentinel errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrPromptRequired),
		errors.Is(err, model.ErrInvalidImage),
		errors.Is(err, model.ErrInvalidCreditAmount),
		errors.Is(err, model.ErrInvalidCreditAction),
		errors.Is(err, model.ErrUnknownPlan):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrTaskNotFound), errors.Is(err, model.ErrOrderNotFound), errors.Is(err, model.ErrHistoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
