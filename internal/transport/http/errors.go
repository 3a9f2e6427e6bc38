package http

import (
	"errors"
	"net/http"

	"bleepy-challenge-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrExhausted), errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage hides driver details behind the kinds that carry them.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnavailable):
		return "service temporarily unavailable"
	case domain.Kind(err) == "internal":
		return "internal server error"
	}
	return err.Error()
}

func writeError(c *gin.Context, log *logrus.Entry, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": publicMessage(err), "kind": domain.Kind(err)})
}
