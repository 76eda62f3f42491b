package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/windbreaker/internal/common"
	"github.com/gin-gonic/gin"
)

// errorResponse maps a service error to an HTTP status and client message.
// Anything unrecognised is a 500 with a generic message.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusBadRequest, "email already registered"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "incorrect email or password"
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "could not validate credentials"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "email not found"
	case errors.Is(err, common.ErrModelUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, common.ErrInference):
		return http.StatusInternalServerError, "prediction failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError is the single place where errors become responses.
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	status, msg := errorResponse(err)

	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed",
			"path", c.FullPath(), "status", status, "error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
