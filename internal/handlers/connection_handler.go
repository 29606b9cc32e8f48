package handler

import (
	"context"
	"errors"
	"net/http"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/models"
	"bank-sync-backend/internal/services/connection"

	"github.com/gin-gonic/gin"
)

type ConnectionService interface {
	Institutions(ctx context.Context, country string) ([]aggregator.Institution, error)
	Connect(ctx context.Context, userID, institutionID, redirectURL string) (*models.Requisition, error)
	Complete(ctx context.Context, userID, reference string) (*connection.CompleteResult, error)
}

type ConnectionHandler struct {
	service ConnectionService
}

func NewConnectionHandler(s ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{service: s}
}

func (h *ConnectionHandler) Institutions(c *gin.Context) {
	institutions, err := h.service.Institutions(c.Request.Context(), c.Query("country"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"institutions": institutions})
}

func (h *ConnectionHandler) Connect(c *gin.Context) {
	var payload struct {
		InstitutionID string `json:"institution_id"`
		RedirectURL   string `json:"redirect_url"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	req, err := h.service.Connect(c.Request.Context(), userID(c), payload.InstitutionID, payload.RedirectURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"reference": req.Reference,
		"link":      req.Link,
		"status":    req.Status,
	})
}

func (h *ConnectionHandler) Complete(c *gin.Context) {
	result, err := h.service.Complete(c.Request.Context(), userID(c), c.Param("reference"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ConnectionHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, connection.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, connection.ErrRequisitionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
	case errors.Is(err, connection.ErrNotLinked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, aggregator.ErrRateLimited), errors.Is(err, aggregator.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bank data provider unavailable, try again later"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "bank data provider request failed"})
	}
}
