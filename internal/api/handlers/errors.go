package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/pkg/dto"
)

// statusFor maps the error taxonomy onto HTTP status codes. A partial
// failure may wrap its per-unit causes, so it is checked first.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrPartialFailure):
		return http.StatusMultiStatus
	case errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), dto.ErrorResponse{Error: err.Error()})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
