package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery converts a handler panic into the standard internal error body.
// The stack is logged, never rendered.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}
			WriteError(c, log.With().Bytes("stack", debug.Stack()).Logger(), fmt.Errorf("panic recovered: %v", r))
		}()
		c.Next()
	}
}
