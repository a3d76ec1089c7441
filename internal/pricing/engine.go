package pricing

import (
	"go-pos-ledger/internal/catalog"
	"go-pos-ledger/internal/core"
	"go-pos-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// minorUnits is the currency's decimal places. Rounding happens only at
// the final line-total step, never on intermediate per-unit values, so
// quantity multiplication cannot compound rounding error.
const minorUnits = 2

// LinePrice is the result of pricing one order line.
type LinePrice struct {
	BasePrice  decimal.Decimal
	PriceDelta decimal.Decimal
	LineTotal  decimal.Decimal
	Profit     decimal.Decimal
	UnitCost   decimal.Decimal
	Modifiers  []catalog.ModifierSnapshot
}

// SelectModifiers resolves modifier ids against an item snapshot and
// returns the summed price delta plus the matched modifier snapshots.
// An id the item does not carry is a validation error; this is the one
// place that policy lives.
func SelectModifiers(snap *catalog.MenuItemSnapshot, modifierIDs []uint) (decimal.Decimal, []catalog.ModifierSnapshot, error) {
	delta := decimal.Zero
	var selected []catalog.ModifierSnapshot
	for _, id := range modifierIDs {
		found := false
		for _, m := range snap.Modifiers {
			if m.ID == id {
				delta = delta.Add(m.PriceDelta)
				selected = append(selected, m)
				found = true
				break
			}
		}
		if !found {
			return decimal.Zero, nil, core.Validationf("modifier %d does not belong to menu item %d", id, snap.ID)
		}
	}
	return delta, selected, nil
}

// PriceMenuItem prices a menu item line: base price × quantity plus the
// sum of the selected modifier deltas, minus the line discount.
func PriceMenuItem(snap *catalog.MenuItemSnapshot, quantity int, modifierIDs []uint, lineDiscount decimal.Decimal) (*LinePrice, error) {
	if quantity <= 0 {
		return nil, core.Validationf("quantity must be positive, got %d", quantity)
	}

	delta, selected, err := SelectModifiers(snap, modifierIDs)
	if err != nil {
		return nil, err
	}
	return computeLine(snap.Price, delta, snap.Cost, quantity, lineDiscount, selected), nil
}

// PriceCombo prices a combo line. The unit price is the configured fixed
// price, or the sum of component unit prices when no fixed price is set.
func PriceCombo(snap *catalog.ComboSnapshot, quantity int, lineDiscount decimal.Decimal) (*LinePrice, error) {
	if quantity <= 0 {
		return nil, core.Validationf("quantity must be positive, got %d", quantity)
	}

	unit := comboUnitPrice(snap)
	cost := decimal.Zero
	for _, c := range snap.Components {
		cost = cost.Add(c.UnitCost.Mul(decimal.NewFromInt(int64(c.Quantity))))
	}
	return computeLine(unit, decimal.Zero, cost, quantity, lineDiscount, nil), nil
}

func computeLine(base, delta, cost decimal.Decimal, quantity int, lineDiscount decimal.Decimal, mods []catalog.ModifierSnapshot) *LinePrice {
	qty := decimal.NewFromInt(int64(quantity))
	lineTotal := qty.Mul(base.Add(delta)).Sub(lineDiscount).Round(minorUnits)
	profit := lineTotal.Sub(cost.Mul(qty)).Round(minorUnits)
	return &LinePrice{
		BasePrice:  base,
		PriceDelta: delta,
		LineTotal:  lineTotal,
		Profit:     profit,
		UnitCost:   cost,
		Modifiers:  mods,
	}
}

func comboUnitPrice(snap *catalog.ComboSnapshot) decimal.Decimal {
	if snap.FixedPrice.Valid {
		return snap.FixedPrice.Decimal
	}
	sum := decimal.Zero
	for _, c := range snap.Components {
		sum = sum.Add(c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity))))
	}
	return sum
}

// ComponentLine is one row of the combo margin breakdown.
type ComponentLine struct {
	MenuItemID uint            `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Available  bool            `json:"available"`
}

// ComboPriceBreakdown is the on-demand combo audit used by management
// tooling: what the combo sells for, what the parts would sell for, and
// the savings the bundle gives away.
type ComboPriceBreakdown struct {
	ComboID      uint            `json:"combo_id"`
	Name         string          `json:"name"`
	Computed     decimal.Decimal `json:"computed"`
	ComponentSum decimal.Decimal `json:"component_sum"`
	Savings      decimal.Decimal `json:"savings"`
	Discountable bool            `json:"discountable"`
	Components   []ComponentLine `json:"components"`
}

// ComputeComboPrice recomputes a combo's price from a fresh snapshot and
// returns the per-component breakdown alongside the computed total.
func ComputeComboPrice(snap *catalog.ComboSnapshot) *ComboPriceBreakdown {
	componentSum := decimal.Zero
	var lines []ComponentLine
	for _, c := range snap.Components {
		lineTotal := c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity))).Round(minorUnits)
		componentSum = componentSum.Add(lineTotal)
		lines = append(lines, ComponentLine{
			MenuItemID: c.MenuItemID,
			Name:       c.Name,
			Quantity:   c.Quantity,
			UnitPrice:  c.UnitPrice,
			LineTotal:  lineTotal,
			Available:  c.Available,
		})
	}

	computed := comboUnitPrice(snap).Round(minorUnits)
	return &ComboPriceBreakdown{
		ComboID:      snap.ID,
		Name:         snap.Name,
		Computed:     computed,
		ComponentSum: componentSum,
		Savings:      componentSum.Sub(computed),
		Discountable: snap.Discountable,
		Components:   lines,
	}
}

// Totals are the order-level aggregates derived from the active items.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Profit   decimal.Decimal
}

// OrderTotals recomputes order aggregates strictly from the given items.
// Deleted items must be filtered out by the caller. The invariant
// total = subtotal - discount + tax always holds; with a zero tax rate
// the total equals the sum of the line totals.
func OrderTotals(items []models.OrderItem, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	discount := decimal.Zero
	profit := decimal.Zero
	for _, it := range items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotal = subtotal.Add(qty.Mul(it.BasePrice.Add(it.PriceDelta)).Round(minorUnits))
		discount = discount.Add(it.LineDiscount)
		profit = profit.Add(it.Profit)
	}
	subtotal = subtotal.Round(minorUnits)
	discount = discount.Round(minorUnits)
	tax := subtotal.Sub(discount).Mul(taxRate).Round(minorUnits)
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(tax),
		Profit:   profit.Round(minorUnits),
	}
}
