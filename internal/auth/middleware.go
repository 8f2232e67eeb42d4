package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"greentrace/lifecycle-engine/internal/lifecycle"
)

const actorKey = "actor"

// Middleware authenticates the bearer token and records the caller's actor
// identity. The engine never trusts role claims from the token; roles are
// resolved server-side against the role directory.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
			return
		}

		c.Set(actorKey, lifecycle.Actor(claims.Subject))
		c.Next()
	}
}

// RequireAdmin gates issuing-authority endpoints (auditor management,
// ownership transfer ingestion) to configured admin actors.
func RequireAdmin(admins []string) gin.HandlerFunc {
	set := map[lifecycle.Actor]struct{}{}
	for _, a := range admins {
		set[lifecycle.Actor(a)] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := set[ActorFrom(c)]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated actor, or "" when unauthenticated.
func ActorFrom(c *gin.Context) lifecycle.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return ""
	}
	actor, _ := v.(lifecycle.Actor)
	return actor
}
