package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"saasboard/api/internal/apperrors"
)

// Recovery converts panics into the standard error body instead of a
// dropped connection.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", RequestIDFrom(c)).
					Str("route", c.FullPath()).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				apperrors.Respond(c, apperrors.Wrap(
					apperrors.KindInternal, "internal server error", fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
