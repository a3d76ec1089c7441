package handlers

import (
	"net/http"
	"strconv"

	"go-pos-ledger/internal/ledger"
	"go-pos-ledger/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// --- POST /api/orders ---
func CreateOrder(c *gin.Context) {
	var req ledger.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	req.ServerID = currentUserID(c)

	order, err := Ledger.CreateOrder(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// --- GET /api/orders/:id ---
func GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := Ledger.GetOrder(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- GET /api/orders?session_id=...&billing_id=... ---
func ListOrders(c *gin.Context) {
	if raw := c.Query("session_id"); raw != "" {
		sessionID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
			return
		}
		orders, err := Ledger.ListBySession(sessionID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
		return
	}

	if raw := c.Query("billing_id"); raw != "" {
		billingID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid billing id"})
			return
		}
		orders, err := Ledger.ListByBilling(billingID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "session_id or billing_id query is required"})
}

// --- POST /api/orders/:id/items ---
func AddItems(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Items []ledger.ItemInput `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	order, err := Ledger.AddItems(id, currentUserID(c), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- PUT /api/orders/:id/items/:itemId ---
func UpdateItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}
	var changes ledger.ItemChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	order, err := Ledger.UpdateItem(id, itemID, currentUserID(c), changes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- DELETE /api/orders/:id/items/:itemId ---
func DeleteItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return
	}

	order, err := Ledger.DeleteItem(id, itemID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- POST /api/orders/:id/close ---
func CloseOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := Ledger.CloseOrder(id, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- POST /api/orders/:id/recalculate ---
func RecalculateTotals(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := Ledger.RecalculateTotals(id, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- POST /api/orders/:id/deliver ---
func MarkDelivered(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Deliveries []ledger.Delivery `json:"deliveries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	order, err := Ledger.MarkDelivered(id, currentUserID(c), req.Deliveries)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- POST /api/orders/:id/waiting ---
func MarkWaiting(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := Ledger.MarkWaiting(id, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// --- GET /api/orders/:id/logs?page=1&page_size=50 ---
func ListOrderLogs(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	logs, total, err := Ledger.ListLogs(id, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":      logs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// --- GET /api/combos/:id/price ---
// Combo margin audit: computed price plus the per-component breakdown.
func ComputeComboPrice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	snap, err := Catalog.GetComboSnapshot(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pricing.ComputeComboPrice(snap))
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}
