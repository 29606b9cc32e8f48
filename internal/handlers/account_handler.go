package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"bank-sync-backend/internal/models"
	"bank-sync-backend/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type AccountReader interface {
	ListByUser(ctx context.Context, userID string) ([]models.Account, error)
	GetForUser(ctx context.Context, userID string, id uuid.UUID) (*models.Account, error)
}

type TransactionReader interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type AccountHandler struct {
	accounts     AccountReader
	transactions TransactionReader
}

func NewAccountHandler(accounts AccountReader, transactions TransactionReader) *AccountHandler {
	return &AccountHandler{accounts: accounts, transactions: transactions}
}

func (h *AccountHandler) List(c *gin.Context) {
	accounts, err := h.accounts.ListByUser(c.Request.Context(), userID(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load accounts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *AccountHandler) Transactions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account ID"})
		return
	}

	limit, offset, ok := pagination(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit or offset"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.accounts.GetForUser(ctx, userID(c), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	items, err := h.transactions.ListByAccount(ctx, id, limit, offset)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}
	total, err := h.transactions.CountByAccount(ctx, id)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":    items,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
		"has_more": int64(offset+len(items)) < total,
	})
}

func pagination(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = defaultPageSize, 0
	var err error
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, false
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, false
		}
	}
	return limit, offset, true
}
