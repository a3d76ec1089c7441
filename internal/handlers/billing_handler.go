package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// --- POST /api/billings ---
func OpenBilling(c *gin.Context) {
	var req struct {
		CustomerName  string `json:"customer_name"`
		CustomerPhone string `json:"customer_phone"`
		TableID       uint   `json:"table_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	billing, err := Billing.OpenBilling(req.CustomerName, req.CustomerPhone, req.TableID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, billing)
}

// --- GET /api/billings/:id/summary ---
func BillingSummary(c *gin.Context) {
	billingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	summary, err := Billing.Summarize(billingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// --- POST /api/billings/:id/close ---
func CloseBilling(c *gin.Context) {
	billingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	billing, err := Billing.CloseBilling(billingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, billing)
}

// --- POST /api/billings/:id/settle ---
func SettleBilling(c *gin.Context) {
	billingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	billing, err := Billing.SettleBilling(billingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, billing)
}

// --- POST /api/billings/:id/cancel ---
func CancelBilling(c *gin.Context) {
	billingID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	billing, err := Billing.CancelBilling(billingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, billing)
}

// --- POST /api/sessions/:id/move ---
func MoveSession(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ToTable uint `json:"to_table" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, err := Billing.MoveSession(sessionID, req.ToTable)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
