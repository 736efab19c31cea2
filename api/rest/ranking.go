package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nosgoth/eldergod/game/progression"
	"go.uber.org/zap"
)

// Leaderboard ranks characters. *progression.Coordinator satisfies it.
type Leaderboard interface {
	Leaderboard(ctx context.Context, limit int) ([]progression.RankEntry, error)
}

// RankingHandler serves the public leaderboard.
type RankingHandler struct {
	board  Leaderboard
	logger *zap.Logger
}

func NewRankingHandler(board Leaderboard, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{board: board, logger: logger}
}

// Top returns the top characters with their clan.
// GET /api/ranking?limit=10
func (h *RankingHandler) Top(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = l
	}
	entries, err := h.board.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("ranking", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if entries == nil {
		entries = []progression.RankEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}
