package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nosgoth/eldergod/cache"
	"github.com/nosgoth/eldergod/config"
)

const SubjectKey = "admin_subject"

// SessionKey is the cache key of an admin session.
func SessionKey(id string) string { return "session:" + id }

// AdminAuth validates the Bearer JWT and checks that its session is still
// present in the cache.
func AdminAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := ParseToken(strings.TrimPrefix(header, "Bearer "), sec.JWTSecret)
		if err != nil || claims.Role != RoleAdmin {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		exists, err := c.Exists(cacheCtx, SessionKey(claims.ID))
		if err != nil || !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		ctx.Set(SubjectKey, claims.Subject)
		ctx.Next()
	}
}

// GetSubject returns the authenticated admin subject, or "".
func GetSubject(c *gin.Context) string {
	return c.GetString(SubjectKey)
}
