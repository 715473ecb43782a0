package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mtricolici98/bot-wuzzler/internal/service"
	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNoActiveMatch):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyScored):
		return http.StatusConflict
	case errors.Is(err, service.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.FullPath(), "error", err)
		_ = c.Error(err)
	}

	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "Storage unavailable, please retry"
	case http.StatusInternalServerError:
		message = "Internal server error"
	}

	c.JSON(status, gin.H{"error": message})
}
