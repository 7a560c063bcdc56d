package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		v, ok := c.Get(ContextActor)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		actor, _ := v.(models.Actor)
		if _, ok := allowed[actor.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
