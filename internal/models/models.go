package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User - The staff member operating the terminal
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"` // Never return this in JSON
	Role         string    `json:"role"` // 'admin', 'manager', 'waiter'
	CreatedAt    time.Time `json:"created_at"`
}

// Order statuses
const (
	OrderStatusOpen   = "open"
	OrderStatusClosed = "closed"
)

// Order-level delivery states
const (
	DeliveryWaiting    = "waiting"
	DeliveryInProgress = "in-progress"
	DeliveryCompleted  = "completed"
)

// Item states (soft delete keeps the row for the audit trail)
const (
	ItemStateActive  = "active"
	ItemStateDeleted = "deleted"
)

// Order - The Tab Header. Totals are always derived from the active items.
type Order struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	SessionID      uuid.UUID       `gorm:"type:char(36);index" json:"session_id"`
	BillingID      *uuid.UUID      `gorm:"type:char(36);index" json:"billing_id,omitempty"`
	TableID        uint            `json:"table_id"`
	ServerID       uint            `json:"server_id"` // Who took the order
	Status         string          `gorm:"size:20;default:'open'" json:"status"`
	DeliveryStatus string          `gorm:"size:20;default:'waiting'" json:"delivery_status"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	DiscountTotal  decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_total"`
	TaxTotal       decimal.Decimal `gorm:"type:decimal(12,2)" json:"tax_total"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2)" json:"total"`
	ProfitTotal    decimal.Decimal `gorm:"type:decimal(12,2)" json:"profit_total"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem - One priced line in an order. The catalog facts (name, sku,
// price, cost...) are copied here at creation time so historical receipts
// stay stable even if the catalog changes later.
type OrderItem struct {
	ID         uint  `gorm:"primaryKey" json:"id"`
	OrderID    uint  `gorm:"index" json:"order_id"`
	MenuItemID *uint `json:"menu_item_id,omitempty"`
	ComboID    *uint `json:"combo_id,omitempty"`

	// Snapshot columns - never re-read from the live catalog
	Name           string `json:"name"`
	SKU            string `gorm:"column:sku;size:64" json:"sku"`
	Category       string `json:"category"`
	ItemGroup      string `json:"item_group"`
	CatalogVersion int    `json:"catalog_version"`
	Picture        string `json:"picture"`

	Quantity          int             `json:"quantity"`
	BasePrice         decimal.Decimal `gorm:"type:decimal(12,2)" json:"base_price"`
	PriceDelta        decimal.Decimal `gorm:"type:decimal(12,2)" json:"price_delta"`
	LineDiscount      decimal.Decimal `gorm:"type:decimal(12,2)" json:"line_discount"`
	LineTotal         decimal.Decimal `gorm:"type:decimal(12,2)" json:"line_total"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_cost"`
	Profit            decimal.Decimal `gorm:"type:decimal(12,2)" json:"profit"`
	DeliveredQuantity int             `json:"delivered_quantity"`
	ItemState         string          `gorm:"size:20;default:'active';index" json:"item_state"`
	ModifiersJSON     string          `gorm:"type:text" json:"modifiers_json,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderLog - Append-only audit trail. One row per mutating operation,
// written inside the same transaction as the mutation it describes.
type OrderLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"index" json:"order_id"`
	Action    string    `gorm:"size:40" json:"action"`
	OldValue  string    `gorm:"type:text" json:"old_value"`
	NewValue  string    `gorm:"type:text" json:"new_value"`
	ServerID  uint      `json:"server_id"`
	CreatedAt time.Time `json:"created_at"`
}
