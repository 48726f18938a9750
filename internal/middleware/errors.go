package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/errs"
)

type errorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Reason  errs.Reason `json:"reason,omitempty"`
	Field   string      `json:"field,omitempty"`
	Entity  string      `json:"entity,omitempty"`
	ID      string      `json:"id,omitempty"`
}

// StatusOf maps an error kind to its HTTP status. Unknown errors are 500.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// WriteError aborts the request with the JSON rendering of err. Internal
// errors are logged in full and rendered without detail. err is also
// attached to the context for the access log.
func WriteError(c *gin.Context, log zerolog.Logger, err error) {
	status := StatusOf(err)
	_ = c.Error(err)

	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).
			Str("request_id", RequestIDFrom(c)).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal_server_error"})
		return
	case http.StatusUnauthorized:
		c.AbortWithStatusJSON(status, errorResponse{Error: "unauthorized"})
		return
	}

	resp := errorResponse{Error: errorCode(status), Message: err.Error()}
	var e *errs.Error
	if errors.As(err, &e) {
		resp.Reason = e.Reason
		resp.Field = e.Field
		resp.Entity = e.Entity
		resp.ID = e.ID
	}
	c.AbortWithStatusJSON(status, resp)
}

func errorCode(status int) string {
	switch status {
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "bad_request"
	}
}
