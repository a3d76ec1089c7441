package catalog

import (
	"errors"

	"go-pos-ledger/internal/core"
	"go-pos-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ModifierSnapshot is one add-on option copied out of the catalog.
type ModifierSnapshot struct {
	ID         uint            `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// MenuItemSnapshot is a point-in-time copy of a menu item. It is pasted
// into the order item at creation; later catalog edits never touch it.
type MenuItemSnapshot struct {
	ID               uint               `json:"id"`
	Name             string             `json:"name"`
	SKU              string             `json:"sku"`
	Category         string             `json:"category"`
	ItemGroup        string             `json:"item_group"`
	Version          int                `json:"version"`
	Picture          string             `json:"picture"`
	Price            decimal.Decimal    `json:"price"`
	Cost             decimal.Decimal    `json:"cost"`
	Available        bool               `json:"available"`
	Discountable     bool               `json:"discountable"`
	InventoryTracked bool               `json:"inventory_tracked"`
	Modifiers        []ModifierSnapshot `json:"modifiers"`
}

// ComponentSnapshot is one constituent of a combo at current catalog rates.
type ComponentSnapshot struct {
	MenuItemID uint            `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Available  bool            `json:"available"`
}

// ComboSnapshot is a point-in-time copy of a combo and its components.
type ComboSnapshot struct {
	ID         uint                `json:"id"`
	Name       string              `json:"name"`
	SKU        string              `json:"sku"`
	Version    int                 `json:"version"`
	Picture    string              `json:"picture"`
	FixedPrice decimal.NullDecimal `json:"fixed_price"`
	Available  bool                `json:"available"`
	// A combo with an unavailable component still prices, but it is
	// excluded from discount campaigns.
	Discountable bool                `json:"discountable"`
	Components   []ComponentSnapshot `json:"components"`
}

// Provider reads the catalog tables and hands out immutable copies.
type Provider struct {
	DB *gorm.DB
}

func NewProvider(db *gorm.DB) *Provider {
	return &Provider{DB: db}
}

func (p *Provider) GetMenuItemSnapshot(id uint) (*MenuItemSnapshot, error) {
	var item models.MenuItem
	err := p.DB.Preload("Modifiers").First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFoundf("menu item %d", id)
	}
	if err != nil {
		return nil, err
	}
	if item.Deleted {
		return nil, core.NotFoundf("menu item %d is deleted", id)
	}

	snap := &MenuItemSnapshot{
		ID:               item.ID,
		Name:             item.Name,
		SKU:              item.SKU,
		Category:         item.Category,
		ItemGroup:        item.ItemGroup,
		Version:          item.Version,
		Picture:          item.Picture,
		Price:            item.Price,
		Cost:             item.CostPrice,
		Available:        item.Available,
		Discountable:     item.Discountable,
		InventoryTracked: item.InventoryTracked,
	}
	for _, m := range item.Modifiers {
		snap.Modifiers = append(snap.Modifiers, ModifierSnapshot{
			ID:         m.ID,
			Name:       m.Name,
			PriceDelta: m.PriceDelta,
		})
	}
	return snap, nil
}

func (p *Provider) GetComboSnapshot(id uint) (*ComboSnapshot, error) {
	var combo models.Combo
	err := p.DB.Preload("Components").First(&combo, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFoundf("combo %d", id)
	}
	if err != nil {
		return nil, err
	}
	if combo.Deleted {
		return nil, core.NotFoundf("combo %d is deleted", id)
	}

	components, err := p.componentSnapshots(combo.Components)
	if err != nil {
		return nil, err
	}

	snap := &ComboSnapshot{
		ID:           combo.ID,
		Name:         combo.Name,
		SKU:          combo.SKU,
		Version:      combo.Version,
		Picture:      combo.Picture,
		FixedPrice:   combo.FixedPrice,
		Available:    combo.Available,
		Discountable: true,
		Components:   components,
	}
	for _, c := range components {
		if !c.Available {
			snap.Discountable = false
			break
		}
	}
	return snap, nil
}

// GetComboComponents exposes the component lines on their own, at
// current catalog rates, for the combo margin audit endpoint.
func (p *Provider) GetComboComponents(comboID uint) ([]ComponentSnapshot, error) {
	snap, err := p.GetComboSnapshot(comboID)
	if err != nil {
		return nil, err
	}
	return snap.Components, nil
}

func (p *Provider) componentSnapshots(components []models.ComboComponent) ([]ComponentSnapshot, error) {
	var out []ComponentSnapshot
	for _, comp := range components {
		var item models.MenuItem
		err := p.DB.First(&item, comp.MenuItemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NotFoundf("combo component references missing menu item %d", comp.MenuItemID)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ComponentSnapshot{
			MenuItemID: item.ID,
			Name:       item.Name,
			Quantity:   comp.Quantity,
			UnitPrice:  item.Price,
			UnitCost:   item.CostPrice,
			Available:  item.Available && !item.Deleted,
		})
	}
	return out, nil
}
