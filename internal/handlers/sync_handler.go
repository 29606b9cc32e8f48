package handler

import (
	"context"
	"errors"
	"net/http"

	"bank-sync-backend/internal/services/orchestrator"

	"github.com/gin-gonic/gin"
)

type SyncService interface {
	SyncAll(ctx context.Context, userID string) (*orchestrator.SyncSummary, error)
	GetSyncStatus(ctx context.Context, userID string) (*orchestrator.SyncStatus, error)
}

type SyncHandler struct {
	service SyncService
}

func NewSyncHandler(s SyncService) *SyncHandler {
	return &SyncHandler{service: s}
}

// Sync runs a full sync for the caller and returns once every account has
// been processed.
func (h *SyncHandler) Sync(c *gin.Context) {
	summary, err := h.service.SyncAll(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, orchestrator.ErrMissingUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load accounts"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.service.GetSyncStatus(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, orchestrator.ErrMissingUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sync status"})
		return
	}
	c.JSON(http.StatusOK, status)
}
