package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	appErrors "github.com/campusops/timetable-engine/pkg/errors"
	"github.com/campusops/timetable-engine/pkg/response"
)

// BearerToken protects the run-trigger endpoint with a single shared
// secret, bcrypt-hashed at rest. There is no user or role model: a
// presented token either matches the configured hash or it doesn't.
func BearerToken(apiKeyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKeyHash == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrInternal, "gateway auth is not configured"))
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(parts[1])); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid bearer token"))
			c.Abort()
			return
		}

		c.Next()
	}
}
