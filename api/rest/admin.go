package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nosgoth/eldergod/game/lore"
	mw "github.com/nosgoth/eldergod/middleware"
	"github.com/nosgoth/eldergod/model"
	"github.com/nosgoth/eldergod/scheduler"
	"go.uber.org/zap"
)

// Guarantor grants a guaranteed level-up. *progression.Coordinator
// satisfies it.
type Guarantor interface {
	GrantGuarantee(ctx context.Context, userID int64) error
}

// AuditReader lists recent audit entries. *audit.Service satisfies it.
type AuditReader interface {
	Recent(ctx context.Context, userID int64, limit int) ([]model.AuditLog, error)
}

// QuoteStore manages lore quotes. *lore.Service satisfies it.
type QuoteStore interface {
	AddQuotes(ctx context.Context, nameEN, nameFR string, quotes []lore.QuoteInput) (int64, error)
	Refresh(ctx context.Context) error
}

// AdminHandler handles admin-only REST endpoints. Routes must run behind
// middleware.AdminAuth.
type AdminHandler struct {
	prog   Guarantor
	audit  AuditReader
	quotes QuoteStore
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

func NewAdminHandler(prog Guarantor, audit AuditReader, quotes QuoteStore, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{prog: prog, audit: audit, quotes: quotes, sched: sched, logger: logger}
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// Guarantee makes the next level-up attempt of a user succeed.
// POST /api/admin/characters/:id/guarantee
func (h *AdminHandler) Guarantee(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	if err := h.prog.GrantGuarantee(c.Request.Context(), id); err != nil {
		h.logger.Error("grant guarantee", zap.Int64("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	h.logger.Info("admin granted guarantee",
		zap.Int64("user_id", id),
		zap.String("admin", mw.GetSubject(c)),
		zap.String("trace_id", mw.GetTraceID(c)))
	c.JSON(http.StatusOK, gin.H{"ok": true, "user_id": strconv.FormatInt(id, 10)})
}

// Audit lists the latest audit entries involving a user.
// GET /api/admin/characters/:id/audit?limit=20
func (h *AdminHandler) Audit(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.audit.Recent(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("recent audit", zap.Int64("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": logs})
}

type quotesRequest struct {
	NameEN string            `json:"name_en" binding:"required,max=100"`
	NameFR string            `json:"name_fr" binding:"required,max=100"`
	Quotes []lore.QuoteInput `json:"quotes" binding:"required,min=1,max=200"`
}

// AddQuotes appends quotes to a lore character, creating it if needed, and
// refreshes the autocomplete names.
// POST /api/admin/quotes
func (h *AdminHandler) AddQuotes(c *gin.Context) {
	var req quotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.quotes.AddQuotes(c.Request.Context(), req.NameEN, req.NameFR, req.Quotes)
	if err != nil {
		h.logger.Error("add quotes", zap.String("name", req.NameEN), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if err := h.quotes.Refresh(c.Request.Context()); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("refresh lore names", zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"character_id": id})
}

// ListSchedulerTasks reports the periodic jobs and their run counters.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Status()})
}
