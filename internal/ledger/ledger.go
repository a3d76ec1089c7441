package ledger

import (
	"encoding/json"
	"errors"
	"log"

	"go-pos-ledger/internal/catalog"
	"go-pos-ledger/internal/core"
	"go-pos-ledger/internal/inventory"
	"go-pos-ledger/internal/models"
	"go-pos-ledger/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogProvider hands out point-in-time catalog snapshots. A missing
// catalog id is fatal to the operation: an order cannot be priced
// without its snapshot.
type CatalogProvider interface {
	GetMenuItemSnapshot(id uint) (*catalog.MenuItemSnapshot, error)
	GetComboSnapshot(id uint) (*catalog.ComboSnapshot, error)
}

// InventoryGateway is the best-effort stock collaborator. Its failures
// never block order flow.
type InventoryGateway interface {
	CheckAvailability(sku string, quantity int) inventory.Result
	Deduct(orderID uint, lines []inventory.DeductionLine) error
}

// Ledger is the aggregate root for orders. Every mutation runs as one
// gorm transaction covering the order row, its item rows and exactly
// one audit log row, so readers never observe partial state.
type Ledger struct {
	DB        *gorm.DB
	Catalog   CatalogProvider
	Inventory InventoryGateway
	TaxRate   decimal.Decimal
}

func New(db *gorm.DB, cat CatalogProvider, inv InventoryGateway, taxRate decimal.Decimal) *Ledger {
	return &Ledger{DB: db, Catalog: cat, Inventory: inv, TaxRate: taxRate}
}

// ItemInput is one requested line. Exactly one of MenuItemID / ComboID
// must be set.
type ItemInput struct {
	MenuItemID   *uint           `json:"menu_item_id"`
	ComboID      *uint           `json:"combo_id"`
	Quantity     int             `json:"quantity"`
	ModifierIDs  []uint          `json:"modifier_ids"`
	LineDiscount decimal.Decimal `json:"line_discount"`
}

// CreateOrderInput carries everything needed to open a tab.
type CreateOrderInput struct {
	SessionID uuid.UUID   `json:"session_id"`
	BillingID *uuid.UUID  `json:"billing_id"`
	TableID   uint        `json:"table_id"`
	ServerID  uint        `json:"server_id"`
	Items     []ItemInput `json:"items"`
}

// CreateOrder builds an order with one item per input line and writes
// order + items + the initial "created" log entry atomically. An empty
// item list opens a bare tab with zeroed totals; lines arrive later via
// AddItems. Stock deduction for inventory-tracked items happens after
// commit, best-effort.
func (l *Ledger) CreateOrder(in CreateOrderInput) (*models.Order, error) {
	items, deductions, err := l.buildItems(in.Items)
	if err != nil {
		return nil, err
	}

	totals := pricing.OrderTotals(items, l.TaxRate)
	order := models.Order{
		SessionID:      in.SessionID,
		BillingID:      in.BillingID,
		TableID:        in.TableID,
		ServerID:       in.ServerID,
		Status:         models.OrderStatusOpen,
		DeliveryStatus: models.DeliveryWaiting,
		Subtotal:       totals.Subtotal,
		DiscountTotal:  totals.Discount,
		TaxTotal:       totals.Tax,
		Total:          totals.Total,
		ProfitTotal:    totals.Profit,
		Items:          items,
	}

	err = l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		return appendLog(tx, order.ID, "created", in.ServerID, nil, orderPayload(tx, &order))
	})
	if err != nil {
		return nil, err
	}

	l.deduct(order.ID, deductions)
	return &order, nil
}

// AddItems appends new lines to an open order. One log entry covers the
// whole added set.
func (l *Ledger) AddItems(orderID uint, serverID uint, inputs []ItemInput) (*models.Order, error) {
	if len(inputs) == 0 {
		return nil, core.Validationf("no items to add")
	}

	items, deductions, err := l.buildItems(inputs)
	if err != nil {
		return nil, err
	}

	var order models.Order
	err = l.DB.Transaction(func(tx *gorm.DB) error {
		if err := findOpenOrder(tx, orderID, &order); err != nil {
			return err
		}
		old := orderPayload(tx, &order)

		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		if err := l.recompute(tx, &order); err != nil {
			return err
		}
		return appendLog(tx, order.ID, "items_added", serverID, old, addedPayload(tx, &order, items))
	})
	if err != nil {
		return nil, err
	}

	l.deduct(order.ID, deductions)
	return l.GetOrder(orderID)
}

// ItemChanges is a partial update to one line. Nil fields stay as-is.
type ItemChanges struct {
	Quantity     *int             `json:"quantity"`
	ModifierIDs  *[]uint          `json:"modifier_ids"`
	LineDiscount *decimal.Decimal `json:"line_discount"`
}

// UpdateItem mutates quantity, modifiers and/or discount of one line and
// reprices it from its stored snapshot. The snapshot base price and cost
// never change; only the modifier table is re-read from the catalog when
// the selection changes.
func (l *Ledger) UpdateItem(orderID, itemID uint, serverID uint, changes ItemChanges) (*models.Order, error) {
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := findOpenOrder(tx, orderID, &order); err != nil {
			return err
		}

		item, err := activeItem(tx, orderID, itemID)
		if err != nil {
			return err
		}
		old := itemPayload(item)

		if changes.Quantity != nil {
			if *changes.Quantity <= 0 {
				return core.Validationf("quantity must be positive, got %d", *changes.Quantity)
			}
			if *changes.Quantity < item.DeliveredQuantity {
				return core.Validationf("quantity %d below already delivered %d", *changes.Quantity, item.DeliveredQuantity)
			}
			item.Quantity = *changes.Quantity
		}

		if changes.ModifierIDs != nil {
			if item.MenuItemID == nil {
				return core.Validationf("combos take no modifiers")
			}
			snap, err := l.Catalog.GetMenuItemSnapshot(*item.MenuItemID)
			if err != nil {
				return err
			}
			delta, selected, err := pricing.SelectModifiers(snap, *changes.ModifierIDs)
			if err != nil {
				return err
			}
			item.PriceDelta = delta
			item.ModifiersJSON = marshalModifiers(selected)
		}

		if changes.LineDiscount != nil {
			if changes.LineDiscount.IsNegative() {
				return core.Validationf("line discount cannot be negative")
			}
			item.LineDiscount = *changes.LineDiscount
		}

		repriceItem(item)
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		if err := l.recompute(tx, &order); err != nil {
			return err
		}
		return appendLog(tx, orderID, "item_updated", serverID, old, itemPayload(item))
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(orderID)
}

// DeleteItem soft-deletes one line. The row and its snapshot stay behind
// for the audit trail; only the totals forget it.
func (l *Ledger) DeleteItem(orderID, itemID uint, serverID uint) (*models.Order, error) {
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := findOpenOrder(tx, orderID, &order); err != nil {
			return err
		}

		item, err := activeItem(tx, orderID, itemID)
		if err != nil {
			return err
		}
		old := itemPayload(item)

		item.ItemState = models.ItemStateDeleted
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		if err := l.recompute(tx, &order); err != nil {
			return err
		}
		return appendLog(tx, orderID, "item_deleted", serverID, old, orderPayload(tx, &order))
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(orderID)
}

// CloseOrder transitions the order to closed. No further item mutation
// is permitted afterwards; delivery marks and audit reads still work.
func (l *Ledger) CloseOrder(orderID uint, serverID uint) (*models.Order, error) {
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := findOpenOrder(tx, orderID, &order); err != nil {
			return err
		}
		old := orderPayload(tx, &order)
		order.Status = models.OrderStatusClosed
		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
			Update("status", models.OrderStatusClosed).Error; err != nil {
			return err
		}
		return appendLog(tx, orderID, "closed", serverID, old, orderPayload(tx, &order))
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(orderID)
}

// RecalculateTotals recomputes all order aggregates strictly from the
// current active items. Idempotent; usable as a repair operation on any
// order regardless of status.
func (l *Ledger) RecalculateTotals(orderID uint, serverID uint) (*models.Order, error) {
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := findOrder(tx, orderID, &order); err != nil {
			return err
		}
		old := orderPayload(tx, &order)
		if err := l.recompute(tx, &order); err != nil {
			return err
		}
		return appendLog(tx, orderID, "recalculated", serverID, old, orderPayload(tx, &order))
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(orderID)
}

// GetOrder returns an order with its active items preloaded.
func (l *Ledger) GetOrder(orderID uint) (*models.Order, error) {
	var order models.Order
	err := l.DB.Preload("Items", "item_state = ?", models.ItemStateActive).
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFoundf("order %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListBySession returns every order created under one table session.
func (l *Ledger) ListBySession(sessionID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := l.DB.Preload("Items", "item_state = ?", models.ItemStateActive).
		Where("session_id = ?", sessionID).
		Order("id").
		Find(&orders).Error
	return orders, err
}

// ListByBilling returns every order across all sessions of a billing.
func (l *Ledger) ListByBilling(billingID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := l.DB.Preload("Items", "item_state = ?", models.ItemStateActive).
		Where("billing_id = ?", billingID).
		Order("id").
		Find(&orders).Error
	return orders, err
}

// ListLogs pages through an order's audit trail, oldest first.
func (l *Ledger) ListLogs(orderID uint, page, pageSize int) ([]models.OrderLog, int64, error) {
	var order models.Order
	if err := findOrder(l.DB, orderID, &order); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int64
	if err := l.DB.Model(&models.OrderLog{}).Where("order_id = ?", orderID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.OrderLog
	err := l.DB.Where("order_id = ?", orderID).
		Order("id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logs).Error
	return logs, total, err
}

// --- internals ---

// buildItems validates and prices every input line. An empty input is
// fine here; callers that require lines guard for themselves.
// Inventory-tracked items get a best-effort availability check; an
// unreachable inventory service resolves to "available".
func (l *Ledger) buildItems(inputs []ItemInput) ([]models.OrderItem, []inventory.DeductionLine, error) {
	var items []models.OrderItem
	var deductions []inventory.DeductionLine

	for i, in := range inputs {
		if (in.MenuItemID == nil) == (in.ComboID == nil) {
			return nil, nil, core.Validationf("item %d must reference exactly one of menu item or combo", i)
		}
		if in.Quantity <= 0 {
			return nil, nil, core.Validationf("item %d: quantity must be positive, got %d", i, in.Quantity)
		}

		if in.MenuItemID != nil {
			snap, err := l.Catalog.GetMenuItemSnapshot(*in.MenuItemID)
			if err != nil {
				return nil, nil, err
			}
			if snap.InventoryTracked {
				res := l.Inventory.CheckAvailability(snap.SKU, in.Quantity)
				if !res.Unreachable && !res.Available {
					return nil, nil, core.Validationf("item %d: %s is out of stock", i, snap.Name)
				}
				deductions = append(deductions, inventory.DeductionLine{
					SKU:      snap.SKU,
					Quantity: in.Quantity,
					UnitCost: snap.Cost,
				})
			}
			price, err := pricing.PriceMenuItem(snap, in.Quantity, in.ModifierIDs, in.LineDiscount)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, models.OrderItem{
				MenuItemID:     in.MenuItemID,
				Name:           snap.Name,
				SKU:            snap.SKU,
				Category:       snap.Category,
				ItemGroup:      snap.ItemGroup,
				CatalogVersion: snap.Version,
				Picture:        snap.Picture,
				Quantity:       in.Quantity,
				BasePrice:      price.BasePrice,
				PriceDelta:     price.PriceDelta,
				LineDiscount:   in.LineDiscount,
				LineTotal:      price.LineTotal,
				UnitCost:       price.UnitCost,
				Profit:         price.Profit,
				ItemState:      models.ItemStateActive,
				ModifiersJSON:  marshalModifiers(price.Modifiers),
			})
			continue
		}

		snap, err := l.Catalog.GetComboSnapshot(*in.ComboID)
		if err != nil {
			return nil, nil, err
		}
		price, err := pricing.PriceCombo(snap, in.Quantity, in.LineDiscount)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, models.OrderItem{
			ComboID:        in.ComboID,
			Name:           snap.Name,
			SKU:            snap.SKU,
			Category:       "combo",
			CatalogVersion: snap.Version,
			Picture:        snap.Picture,
			Quantity:       in.Quantity,
			BasePrice:      price.BasePrice,
			PriceDelta:     price.PriceDelta,
			LineDiscount:   in.LineDiscount,
			LineTotal:      price.LineTotal,
			UnitCost:       price.UnitCost,
			Profit:         price.Profit,
			ItemState:      models.ItemStateActive,
		})
	}
	return items, deductions, nil
}

// recompute refreshes the order aggregates from the active items inside
// the caller's transaction.
func (l *Ledger) recompute(tx *gorm.DB, order *models.Order) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ? AND item_state = ?", order.ID, models.ItemStateActive).
		Find(&items).Error; err != nil {
		return err
	}
	totals := pricing.OrderTotals(items, l.TaxRate)
	order.Subtotal = totals.Subtotal
	order.DiscountTotal = totals.Discount
	order.TaxTotal = totals.Tax
	order.Total = totals.Total
	order.ProfitTotal = totals.Profit
	return tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
		"subtotal":       totals.Subtotal,
		"discount_total": totals.Discount,
		"tax_total":      totals.Tax,
		"total":          totals.Total,
		"profit_total":   totals.Profit,
	}).Error
}

func (l *Ledger) deduct(orderID uint, lines []inventory.DeductionLine) {
	if l.Inventory == nil || len(lines) == 0 {
		return
	}
	if err := l.Inventory.Deduct(orderID, lines); err != nil {
		// Reconciled out-of-band; a failed deduction never unwinds a sale.
		log.Printf("⚠️ Inventory deduction failed for order %d: %v", orderID, err)
	}
}

func findOrder(tx *gorm.DB, orderID uint, out *models.Order) error {
	err := tx.First(out, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.NotFoundf("order %d", orderID)
	}
	return err
}

func findOpenOrder(tx *gorm.DB, orderID uint, out *models.Order) error {
	if err := findOrder(tx, orderID, out); err != nil {
		return err
	}
	if out.Status == models.OrderStatusClosed {
		return core.Conflictf("order %d is closed", orderID)
	}
	return nil
}

func activeItem(tx *gorm.DB, orderID, itemID uint) (*models.OrderItem, error) {
	var item models.OrderItem
	err := tx.Where("id = ? AND order_id = ?", itemID, orderID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFoundf("item %d on order %d", itemID, orderID)
	}
	if err != nil {
		return nil, err
	}
	if item.ItemState == models.ItemStateDeleted {
		return nil, core.NotFoundf("item %d on order %d is deleted", itemID, orderID)
	}
	return &item, nil
}

func repriceItem(item *models.OrderItem) {
	qty := decimal.NewFromInt(int64(item.Quantity))
	item.LineTotal = qty.Mul(item.BasePrice.Add(item.PriceDelta)).Sub(item.LineDiscount).Round(2)
	item.Profit = item.LineTotal.Sub(item.UnitCost.Mul(qty)).Round(2)
}

func marshalModifiers(mods []catalog.ModifierSnapshot) string {
	if len(mods) == 0 {
		return ""
	}
	b, _ := json.Marshal(mods)
	return string(b)
}
