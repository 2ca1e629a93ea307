package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/JonathanYesh279/Tenuto.io---Backend-sub001/internal/domain"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"

	// ActorKey is the gin context key holding the domain.Actor.
	ActorKey = "actor"
)

// Identity reads the caller identity set by the upstream auth gateway.
// Requests without a user id are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(userIDHeader))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing user identity"})
			return
		}
		c.Set(ActorKey, domain.Actor{
			ID:   id,
			Role: strings.ToLower(strings.TrimSpace(c.GetHeader(userRoleHeader))),
		})
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActorFrom(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}
		c.Next()
	}
}

// ActorFrom returns the actor stored by Identity, or the zero Actor.
func ActorFrom(c *gin.Context) domain.Actor {
	v, ok := c.Get(ActorKey)
	if !ok {
		return domain.Actor{}
	}
	actor, _ := v.(domain.Actor)
	return actor
}
