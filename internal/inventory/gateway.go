package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Result distinguishes a definitive answer from an unreachable
// collaborator, so the fail-open policy lives in one place instead of
// being re-decided at every call site.
type Result struct {
	Available   bool
	Unreachable bool
}

// DeductionLine is one SKU to deduct after a committed sale.
type DeductionLine struct {
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Gateway talks to the external inventory service. Every call is
// best-effort: a timeout or non-success response never blocks a sale.
type Gateway struct {
	BaseURL string
	Client  *http.Client
}

// NewFromEnv builds the gateway from INVENTORY_URL and
// INVENTORY_TIMEOUT_SECONDS. An empty URL leaves the gateway in
// "always unreachable" mode, which the callers treat as available.
func NewFromEnv() *Gateway {
	timeout := 3 * time.Second
	if raw := os.Getenv("INVENTORY_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	return &Gateway{
		BaseURL: os.Getenv("INVENTORY_URL"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// CheckAvailability asks whether a SKU can cover the quantity.
// Unreachable resolves to available (fail-open): a drinks fridge being
// offline must never block a sale.
func (g *Gateway) CheckAvailability(sku string, quantity int) Result {
	if g == nil || g.BaseURL == "" {
		return Result{Available: true, Unreachable: true}
	}

	body, _ := json.Marshal(map[string]any{"sku": sku, "quantity": quantity})
	resp, err := g.Client.Post(g.BaseURL+"/inventory/availability", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("⚠️ Inventory check unreachable for %s: %v (assuming available)", sku, err)
		return Result{Available: true, Unreachable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️ Inventory check for %s returned %d (assuming available)", sku, resp.StatusCode)
		return Result{Available: true, Unreachable: true}
	}

	var out struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Printf("⚠️ Inventory check for %s sent a bad payload: %v (assuming available)", sku, err)
		return Result{Available: true, Unreachable: true}
	}
	return Result{Available: out.Available}
}

// Deduct posts stock adjustments for a committed order. Fire-and-continue:
// failures are logged for out-of-band reconciliation and never bubble up.
func (g *Gateway) Deduct(orderID uint, lines []DeductionLine) error {
	if g == nil || g.BaseURL == "" || len(lines) == 0 {
		return nil
	}

	for _, line := range lines {
		body, _ := json.Marshal(map[string]any{
			"sku":        line.SKU,
			"delta":      -line.Quantity,
			"unit_cost":  line.UnitCost,
			"source":     "order",
			"source_ref": fmt.Sprintf("order-%d", orderID),
		})
		resp, err := g.Client.Post(g.BaseURL+"/inventory/adjust", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Printf("⚠️ Inventory deduction failed for order %d sku %s: %v", orderID, line.SKU, err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			log.Printf("⚠️ Inventory deduction for order %d sku %s returned %d", orderID, line.SKU, resp.StatusCode)
		}
		resp.Body.Close()
	}
	return nil
}
