package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/EternisAI/silo-enroll/internal/api/http/dto"
	"github.com/EternisAI/silo-enroll/internal/journal"
	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	store journal.Store
}

func NewHistoryHandler(store journal.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) List(ctx *gin.Context) {
	limit := journal.DefaultListLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.store.List(ctx.Request.Context(), ctx.Query("username"), limit)
	if err != nil {
		slog.Error("Failed to list enrollment history", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list enrollment history"})
		return
	}

	out := make([]dto.JournalEntry, len(entries))
	for i, e := range entries {
		out[i] = dto.JournalEntry{
			ID:         e.ID.String(),
			SessionID:  e.SessionID.String(),
			Username:   e.Username,
			Kind:       string(e.Kind),
			DeviceName: e.DeviceName,
			DeviceID:   e.DeviceID,
			LocationID: e.LocationID,
			CreatedAt:  e.CreatedAt,
		}
	}

	ctx.JSON(http.StatusOK, dto.HistoryResponse{
		Entries: out,
		Count:   len(out),
	})
}
