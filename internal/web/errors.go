package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"lunar-card/internal/apperr"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusFor maps an error to its HTTP status by kind.
func StatusFor(err error) int {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrAuth:
		return http.StatusUnauthorized
	case apperr.ErrPermission:
		return http.StatusForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrPersistence, apperr.ErrNotification:
		return http.StatusBadGateway
	case apperr.ErrLoad:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError aborts the request with the status of err.
func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	body := APIError{Error: err.Error()}
	if kind := apperr.Kind(err); kind != nil {
		body.Kind = kind.Error()
	}

	event := log.Debug()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", status).
		Msg("Request failed")

	if status == http.StatusInternalServerError {
		body = APIError{Error: "internal error"}
	}
	c.AbortWithStatusJSON(status, body)
}

// errBadRequest is returned when the request body cannot be decoded.
var errBadRequest = errors.New("malformed request body")

func badRequest(c *gin.Context, err error) {
	log.Debug().Err(err).Str("path", c.FullPath()).Msg("Malformed request")
	c.AbortWithStatusJSON(http.StatusBadRequest, APIError{
		Error: errBadRequest.Error(),
		Kind:  apperr.ErrValidation.Error(),
	})
}
