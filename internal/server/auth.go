package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TimyBen/cloud-file-management-system/internal/domain"
	"github.com/TimyBen/cloud-file-management-system/internal/server/middleware"
)

const actorKey = "actor"

// requireAuth guards the REST API with the same token contract as the
// realtime handshake and stashes the actor on the gin context.
func (a *App) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := middleware.ExtractToken(c.Request)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token required"})
			return
		}

		claims, err := middleware.ParseClaims(tokenString, a.config.Server.Auth.JWTSecret)
		if err != nil || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(actorKey, middleware.ActorFromClaims(claims))
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(domain.Actor)
	return actor
}
