package models

import "github.com/shopspring/decimal"

// The catalog tables are owned by the menu service; this service only
// reads them to build point-in-time snapshots for order items.

// MenuItem - A single sellable dish or drink
type MenuItem struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Name             string          `json:"name"`
	SKU              string          `gorm:"column:sku;size:64;index" json:"sku"`
	Category         string          `json:"category"`
	ItemGroup        string          `json:"item_group"`
	Version          int             `json:"version"`
	Picture          string          `json:"picture"`
	Price            decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
	CostPrice        decimal.Decimal `gorm:"type:decimal(12,2)" json:"cost_price"`
	Available        bool            `gorm:"default:true" json:"available"`
	Discountable     bool            `gorm:"default:true" json:"discountable"`
	InventoryTracked bool            `json:"inventory_tracked"` // pre-packaged items deducted by SKU
	Deleted          bool            `gorm:"default:false" json:"-"`
	Modifiers        []Modifier      `gorm:"foreignKey:MenuItemID" json:"modifiers"`
}

// Modifier - An optional add-on that shifts the item price by a fixed delta
type Modifier struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	MenuItemID uint            `gorm:"index" json:"menu_item_id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `gorm:"type:decimal(12,2)" json:"price_delta"`
}

// Combo - A bundled set of menu items, optionally at a fixed price
// below the sum of its components.
type Combo struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	Name       string              `json:"name"`
	SKU        string              `gorm:"column:sku;size:64" json:"sku"`
	Version    int                 `json:"version"`
	Picture    string              `json:"picture"`
	FixedPrice decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"fixed_price"`
	Available  bool                `gorm:"default:true" json:"available"`
	Deleted    bool                `gorm:"default:false" json:"-"`
	Components []ComboComponent    `gorm:"foreignKey:ComboID" json:"components"`
}

// ComboComponent - One constituent line of a combo
type ComboComponent struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	ComboID    uint `gorm:"index" json:"combo_id"`
	MenuItemID uint `json:"menu_item_id"`
	Quantity   int  `json:"quantity"`
}
