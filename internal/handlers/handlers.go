package handlers

import (
	"errors"
	"net/http"

	"go-pos-ledger/internal/analytics"
	"go-pos-ledger/internal/billing"
	"go-pos-ledger/internal/catalog"
	"go-pos-ledger/internal/core"
	"go-pos-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// Package-level services, wired once at startup.
var (
	Ledger    *ledger.Ledger
	Billing   *billing.Service
	Analytics *analytics.Service
	Catalog   *catalog.Provider
)

func Setup(l *ledger.Ledger, b *billing.Service, a *analytics.Service, c *catalog.Provider) {
	Ledger = l
	Billing = b
	Analytics = a
	Catalog = c
}

// respondError maps the ledger's error classes onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrUnreachable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}

// currentUserID pulls the acting server id set by the auth middleware.
func currentUserID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
