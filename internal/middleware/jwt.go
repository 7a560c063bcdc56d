package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/response"
)

// ContextActor is the key for the authenticated models.Actor in gin context.
const ContextActor = "actor"

// TokenValidator turns a bearer token into the caller it identifies.
type TokenValidator interface {
	Actor(token string) (models.Actor, error)
}

// JWT returns a middleware that validates the bearer token and sets the actor in
// context. Browsers cannot set headers on WebSocket upgrades, so a "token" query
// parameter is accepted when the Authorization header is absent.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		actor, err := validator.Actor(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextActor, actor)
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		t := c.Query("token")
		return t, t != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ActorFrom returns the actor set by JWT, or the zero Actor.
func ActorFrom(c *gin.Context) models.Actor {
	v, ok := c.Get(ContextActor)
	if !ok {
		return models.Actor{}
	}
	actor, _ := v.(models.Actor)
	return actor
}
