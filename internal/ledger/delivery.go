package ledger

import (
	"time"

	"go-pos-ledger/internal/core"
	"go-pos-ledger/internal/models"

	"gorm.io/gorm"
)

// Delivery is one delivered increment for an item.
type Delivery struct {
	ItemID   uint `json:"item_id"`
	Quantity int  `json:"quantity"`
}

// MarkDelivered increments delivered counters and recomputes the
// order-level delivery status. Delivering more than the ordered
// quantity is rejected before any write. Closed orders still accept
// delivery marks; only item mutation is frozen by closing.
func (l *Ledger) MarkDelivered(orderID uint, serverID uint, deliveries []Delivery) (*models.Order, error) {
	if len(deliveries) == 0 {
		return nil, core.Validationf("no deliveries given")
	}

	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := findOrder(tx, orderID, &order); err != nil {
			return err
		}
		old := orderPayload(tx, &order)

		var delivered []itemSnapshotPayload
		for _, d := range deliveries {
			if d.Quantity <= 0 {
				return core.Validationf("delivered quantity must be positive, got %d", d.Quantity)
			}
			item, err := activeItem(tx, orderID, d.ItemID)
			if err != nil {
				return err
			}
			if item.DeliveredQuantity+d.Quantity > item.Quantity {
				return core.Validationf("item %d: delivering %d would exceed ordered quantity %d (already delivered %d)",
					d.ItemID, d.Quantity, item.Quantity, item.DeliveredQuantity)
			}
			item.DeliveredQuantity += d.Quantity
			if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).
				Update("delivered_quantity", item.DeliveredQuantity).Error; err != nil {
				return err
			}
			delivered = append(delivered, itemPayload(item))
		}

		status, err := deliveryStatus(tx, orderID)
		if err != nil {
			return err
		}
		updates := map[string]any{"delivery_status": status}
		if status == models.DeliveryCompleted && order.DeliveredAt == nil {
			now := time.Now()
			order.DeliveredAt = &now
			updates["delivered_at"] = now
		}
		order.DeliveryStatus = status
		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error; err != nil {
			return err
		}

		return appendLog(tx, orderID, "delivered", serverID, old, struct {
			Order orderSnapshotPayload  `json:"order"`
			Items []itemSnapshotPayload `json:"items"`
		}{orderPayload(tx, &order), delivered})
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(orderID)
}

// MarkWaiting sends the order back to the kitchen queue. Per-item
// delivered counters are left untouched.
func (l *Ledger) MarkWaiting(orderID uint, serverID uint) (*models.Order, error) {
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := findOrder(tx, orderID, &order); err != nil {
			return err
		}
		old := orderPayload(tx, &order)
		order.DeliveryStatus = models.DeliveryWaiting
		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).
			Update("delivery_status", models.DeliveryWaiting).Error; err != nil {
			return err
		}
		return appendLog(tx, orderID, "marked_waiting", serverID, old, orderPayload(tx, &order))
	})
	if err != nil {
		return nil, err
	}
	return l.GetOrder(orderID)
}

// deliveryStatus derives the order-level state from the active items:
// waiting when nothing is delivered, completed when every active item
// is fully delivered, in-progress in between.
func deliveryStatus(tx *gorm.DB, orderID uint) (string, error) {
	var items []models.OrderItem
	if err := tx.Where("order_id = ? AND item_state = ?", orderID, models.ItemStateActive).
		Find(&items).Error; err != nil {
		return "", err
	}

	any := false
	all := len(items) > 0
	for _, it := range items {
		if it.DeliveredQuantity > 0 {
			any = true
		}
		if it.DeliveredQuantity < it.Quantity {
			all = false
		}
	}
	switch {
	case all:
		return models.DeliveryCompleted, nil
	case any:
		return models.DeliveryInProgress, nil
	default:
		return models.DeliveryWaiting, nil
	}
}
