package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nosgoth/eldergod/cache"
	"github.com/nosgoth/eldergod/config"
	mw "github.com/nosgoth/eldergod/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler issues admin sessions for the ops API.
type AuthHandler struct {
	cache   cache.Cache
	sec     config.SecurityConfig
	keyHash []byte
	logger  *zap.Logger
}

// NewAuthHandler creates an AuthHandler. An empty keyHash disables login.
func NewAuthHandler(c cache.Cache, sec config.SecurityConfig, keyHash string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{cache: c, sec: sec, keyHash: []byte(keyHash), logger: logger}
}

type loginRequest struct {
	Key string `json:"key" binding:"required,min=8,max=128"`
}

// Login handles POST /api/admin/login.
func (h *AuthHandler) Login(c *gin.Context) {
	if len(h.keyHash) == 0 || h.sec.JWTSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin endpoints disabled: set server.admin_key_hash and security.jwt_secret"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := bcrypt.CompareHashAndPassword(h.keyHash, []byte(req.Key)); err != nil {
		h.logger.Warn("admin login rejected", zap.String("client_ip", c.ClientIP()), zap.String("trace_id", mw.GetTraceID(c)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, claims, err := mw.GenerateToken("admin", h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.Set(ctx, mw.SessionKey(claims.ID), claims.Subject, h.sec.JWTTTLH); err != nil {
		h.logger.Error("store admin session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	h.logger.Info("admin login", zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
	})
}

// Logout handles POST /api/admin/logout. It must run behind AdminAuth.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, err := mw.ParseToken(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "), h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, mw.SessionKey(claims.ID))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
