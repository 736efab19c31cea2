package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nosgoth/eldergod/cache"
	"gorm.io/gorm"
)

// HealthHandler reports whether the store and the cache answer.
type HealthHandler struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewHealthHandler(db *gorm.DB, c cache.Cache) *HealthHandler {
	return &HealthHandler{db: db, cache: c}
}

// Check handles GET /health.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "db": "ok", "cache": "ok"}
	code := http.StatusOK
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["db"], status["status"] = "down", "degraded"
		code = http.StatusServiceUnavailable
	}
	if _, err := h.cache.Exists(ctx, "health"); err != nil {
		status["cache"], status["status"] = "down", "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
