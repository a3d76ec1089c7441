package ledger

import (
	"encoding/json"

	"go-pos-ledger/internal/models"

	"gorm.io/gorm"
)

// appendLog writes one audit row inside the caller's transaction. The
// row is part of the same commit as the mutation it describes, so the
// log is gapless relative to ledger state.
func appendLog(tx *gorm.DB, orderID uint, action string, serverID uint, oldValue, newValue any) error {
	entry := models.OrderLog{
		OrderID:  orderID,
		Action:   action,
		ServerID: serverID,
		OldValue: marshalPayload(oldValue),
		NewValue: marshalPayload(newValue),
	}
	return tx.Create(&entry).Error
}

func marshalPayload(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// orderSnapshotPayload is the order-level state captured in a log row.
type orderSnapshotPayload struct {
	OrderID        uint   `json:"order_id"`
	Status         string `json:"status"`
	DeliveryStatus string `json:"delivery_status"`
	Subtotal       string `json:"subtotal"`
	DiscountTotal  string `json:"discount_total"`
	TaxTotal       string `json:"tax_total"`
	Total          string `json:"total"`
	ProfitTotal    string `json:"profit_total"`
	ItemCount      int    `json:"item_count"`
}

// orderPayload reads the active-item count inside the caller's
// transaction, so the payload reflects the order at log time, not at
// whatever point the row happened to be loaded.
func orderPayload(tx *gorm.DB, o *models.Order) orderSnapshotPayload {
	var count int64
	tx.Model(&models.OrderItem{}).
		Where("order_id = ? AND item_state = ?", o.ID, models.ItemStateActive).
		Count(&count)
	return orderSnapshotPayload{
		OrderID:        o.ID,
		Status:         o.Status,
		DeliveryStatus: o.DeliveryStatus,
		Subtotal:       o.Subtotal.StringFixed(2),
		DiscountTotal:  o.DiscountTotal.StringFixed(2),
		TaxTotal:       o.TaxTotal.StringFixed(2),
		Total:          o.Total.StringFixed(2),
		ProfitTotal:    o.ProfitTotal.StringFixed(2),
		ItemCount:      int(count),
	}
}

// itemSnapshotPayload is the line-level state captured in a log row. The
// snapshot name rides along so a deleted line stays identifiable from
// the audit trail alone.
type itemSnapshotPayload struct {
	ItemID            uint   `json:"item_id"`
	Name              string `json:"name"`
	SKU               string `json:"sku"`
	Quantity          int    `json:"quantity"`
	BasePrice         string `json:"base_price"`
	PriceDelta        string `json:"price_delta"`
	LineDiscount      string `json:"line_discount"`
	LineTotal         string `json:"line_total"`
	DeliveredQuantity int    `json:"delivered_quantity"`
	ItemState         string `json:"item_state"`
	Modifiers         string `json:"modifiers,omitempty"`
}

func itemPayload(it *models.OrderItem) itemSnapshotPayload {
	return itemSnapshotPayload{
		ItemID:            it.ID,
		Name:              it.Name,
		SKU:               it.SKU,
		Quantity:          it.Quantity,
		BasePrice:         it.BasePrice.StringFixed(2),
		PriceDelta:        it.PriceDelta.StringFixed(2),
		LineDiscount:      it.LineDiscount.StringFixed(2),
		LineTotal:         it.LineTotal.StringFixed(2),
		DeliveredQuantity: it.DeliveredQuantity,
		ItemState:         it.ItemState,
		Modifiers:         it.ModifiersJSON,
	}
}

type addedItemsPayload struct {
	Order orderSnapshotPayload  `json:"order"`
	Added []itemSnapshotPayload `json:"added"`
}

func addedPayload(tx *gorm.DB, o *models.Order, items []models.OrderItem) addedItemsPayload {
	out := addedItemsPayload{Order: orderPayload(tx, o)}
	for i := range items {
		out.Added = append(out.Added, itemPayload(&items[i]))
	}
	return out
}
