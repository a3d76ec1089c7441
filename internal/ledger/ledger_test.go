package ledger

import (
	"errors"
	"strings"
	"testing"

	"go-pos-ledger/internal/catalog"
	"go-pos-ledger/internal/core"
	"go-pos-ledger/internal/database"
	"go-pos-ledger/internal/inventory"
	"go-pos-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubInventory lets tests dial in the collaborator's behavior.
type stubInventory struct {
	result     inventory.Result
	deductions [][]inventory.DeductionLine
}

func (s *stubInventory) CheckAvailability(sku string, quantity int) inventory.Result {
	return s.result
}

func (s *stubInventory) Deduct(orderID uint, lines []inventory.DeductionLine) error {
	s.deductions = append(s.deductions, lines)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestLedger gives a ledger over an in-memory store with a seeded
// catalog: Burger 10.00 (modifier Extra Cheese +1.50), Fries 5.00,
// inventory-tracked Cola 3.00, and a Burger Meal combo fixed at 15.00
// whose components sum to 18.00.
func newTestLedger(t *testing.T) (*Ledger, *stubInventory, *gorm.DB) {
	t.Helper()
	db := testDB(t)

	items := []models.MenuItem{
		{ID: 1, Name: "Burger", SKU: "BRG-1", Category: "Food", ItemGroup: "Mains", Version: 3,
			Picture: "burger.jpg", Price: dec("10.00"), CostPrice: dec("4.00"), Available: true, Discountable: true},
		{ID: 2, Name: "Fries", SKU: "FRS-1", Category: "Food", Price: dec("5.00"), CostPrice: dec("1.00"), Available: true, Discountable: true},
		{ID: 3, Name: "Cola 330ml", SKU: "COLA-330", Category: "Drinks", Price: dec("3.00"), CostPrice: dec("1.20"),
			Available: true, Discountable: true, InventoryTracked: true},
	}
	if err := db.Create(&items).Error; err != nil {
		t.Fatalf("seed menu items: %v", err)
	}
	if err := db.Create(&models.Modifier{ID: 11, MenuItemID: 1, Name: "Extra Cheese", PriceDelta: dec("1.50")}).Error; err != nil {
		t.Fatalf("seed modifier: %v", err)
	}
	combo := models.Combo{
		ID: 5, Name: "Burger Meal", SKU: "CMB-5", Version: 2,
		FixedPrice: decimal.NewNullDecimal(dec("15.00")), Available: true,
		Components: []models.ComboComponent{
			{MenuItemID: 1, Quantity: 1},
			{MenuItemID: 2, Quantity: 1},
			{MenuItemID: 3, Quantity: 1},
		},
	}
	if err := db.Create(&combo).Error; err != nil {
		t.Fatalf("seed combo: %v", err)
	}

	inv := &stubInventory{result: inventory.Result{Available: true}}
	return New(db, catalog.NewProvider(db), inv, decimal.Zero), inv, db
}

func createBurgerOrder(t *testing.T, l *Ledger, items ...ItemInput) *models.Order {
	t.Helper()
	if len(items) == 0 {
		items = []ItemInput{{MenuItemID: ptr(uint(1)), Quantity: 2, ModifierIDs: []uint{11}}}
	}
	order, err := l.CreateOrder(CreateOrderInput{
		SessionID: uuid.New(),
		TableID:   7,
		ServerID:  42,
		Items:     items,
	})
	if err != nil {
		t.Fatalf("CreateOrder error = %v", err)
	}
	return order
}

func countLogs(t *testing.T, db *gorm.DB, orderID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.OrderLog{}).Where("order_id = ?", orderID).Count(&n).Error; err != nil {
		t.Fatalf("count logs: %v", err)
	}
	return n
}

func lastLog(t *testing.T, db *gorm.DB, orderID uint) models.OrderLog {
	t.Helper()
	var entry models.OrderLog
	if err := db.Where("order_id = ?", orderID).Order("id desc").First(&entry).Error; err != nil {
		t.Fatalf("load last log: %v", err)
	}
	return entry
}

func TestCreateOrderPricesItemsAndLogs(t *testing.T) {
	l, _, db := newTestLedger(t)

	// basePrice=10.00, qty=2, one modifier delta=+1.50 → 23.00
	order := createBurgerOrder(t, l)

	if !order.Total.Equal(dec("23.00")) {
		t.Errorf("Total = %s, want 23.00", order.Total)
	}
	if !order.Subtotal.Equal(dec("23.00")) {
		t.Errorf("Subtotal = %s, want 23.00", order.Subtotal)
	}
	if len(order.Items) != 1 {
		t.Fatalf("Items = %d, want 1", len(order.Items))
	}
	item := order.Items[0]
	if item.Name != "Burger" || item.SKU != "BRG-1" || item.CatalogVersion != 3 || item.Picture != "burger.jpg" {
		t.Errorf("snapshot columns wrong: %+v", item)
	}
	if !item.LineTotal.Equal(dec("23.00")) {
		t.Errorf("LineTotal = %s, want 23.00", item.LineTotal)
	}

	if n := countLogs(t, db, order.ID); n != 1 {
		t.Fatalf("log rows = %d, want 1", n)
	}
	entry := lastLog(t, db, order.ID)
	if entry.Action != "created" || entry.ServerID != 42 {
		t.Errorf("log entry = %+v", entry)
	}
	if !strings.Contains(entry.NewValue, `"total":"23.00"`) || !strings.Contains(entry.NewValue, `"item_count":1`) {
		t.Errorf("log new value should reconstruct totals and item count, got %s", entry.NewValue)
	}
}

// Opening a tab before anything is ordered is a normal flow: the order
// starts with zeroed totals and fills up via AddItems.
func TestCreateOrderOpensEmptyTab(t *testing.T) {
	l, _, db := newTestLedger(t)

	order, err := l.CreateOrder(CreateOrderInput{SessionID: uuid.New(), TableID: 9, ServerID: 42})
	if err != nil {
		t.Fatalf("CreateOrder error = %v", err)
	}
	if order.Status != models.OrderStatusOpen {
		t.Errorf("Status = %s, want open", order.Status)
	}
	if len(order.Items) != 0 {
		t.Errorf("Items = %d, want 0", len(order.Items))
	}
	if !order.Total.IsZero() || !order.Subtotal.IsZero() || !order.ProfitTotal.IsZero() {
		t.Errorf("totals = %s/%s/%s, want all zero", order.Subtotal, order.Total, order.ProfitTotal)
	}

	if n := countLogs(t, db, order.ID); n != 1 {
		t.Fatalf("log rows = %d, want 1", n)
	}
	entry := lastLog(t, db, order.ID)
	if entry.Action != "created" || !strings.Contains(entry.NewValue, `"item_count":0`) {
		t.Errorf("created log = %+v", entry)
	}

	// The empty tab behaves like any open order afterwards
	updated, err := l.AddItems(order.ID, 42, []ItemInput{{MenuItemID: ptr(uint(2)), Quantity: 1}})
	if err != nil {
		t.Fatalf("AddItems error = %v", err)
	}
	if !updated.Total.Equal(dec("5.00")) {
		t.Errorf("Total = %s, want 5.00", updated.Total)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)

	tests := []struct {
		name    string
		items   []ItemInput
		wantErr error
	}{
		{
			name:    "neither menu item nor combo",
			items:   []ItemInput{{Quantity: 1}},
			wantErr: core.ErrValidation,
		},
		{
			name:    "both menu item and combo",
			items:   []ItemInput{{MenuItemID: ptr(uint(1)), ComboID: ptr(uint(5)), Quantity: 1}},
			wantErr: core.ErrValidation,
		},
		{
			name:    "zero quantity",
			items:   []ItemInput{{MenuItemID: ptr(uint(1)), Quantity: 0}},
			wantErr: core.ErrValidation,
		},
		{
			name:    "unknown menu item",
			items:   []ItemInput{{MenuItemID: ptr(uint(999)), Quantity: 1}},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "unknown combo",
			items:   []ItemInput{{ComboID: ptr(uint(999)), Quantity: 1}},
			wantErr: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.CreateOrder(CreateOrderInput{SessionID: uuid.New(), TableID: 1, Items: tt.items})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateOrder error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateOrderInventoryFailOpen(t *testing.T) {
	l, inv, _ := newTestLedger(t)

	// Inventory down: the sale still goes through
	inv.result = inventory.Result{Available: true, Unreachable: true}
	order := createBurgerOrder(t, l, ItemInput{MenuItemID: ptr(uint(3)), Quantity: 2})
	if !order.Total.Equal(dec("6.00")) {
		t.Errorf("Total = %s, want 6.00", order.Total)
	}

	// A definitive "out of stock" is still respected
	inv.result = inventory.Result{Available: false}
	_, err := l.CreateOrder(CreateOrderInput{
		SessionID: uuid.New(),
		TableID:   2,
		Items:     []ItemInput{{MenuItemID: ptr(uint(3)), Quantity: 1}},
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("out of stock error = %v, want ErrValidation", err)
	}
}

func TestCreateOrderDeductsTrackedItems(t *testing.T) {
	l, inv, _ := newTestLedger(t)

	order := createBurgerOrder(t, l,
		ItemInput{MenuItemID: ptr(uint(1)), Quantity: 1}, // made to order, not tracked
		ItemInput{MenuItemID: ptr(uint(3)), Quantity: 2}, // pre-packaged cola
	)

	if len(inv.deductions) != 1 {
		t.Fatalf("deduction calls = %d, want 1", len(inv.deductions))
	}
	lines := inv.deductions[0]
	if len(lines) != 1 || lines[0].SKU != "COLA-330" || lines[0].Quantity != 2 {
		t.Errorf("deduction lines = %+v", lines)
	}
	_ = order
}

func TestAddItems(t *testing.T) {
	l, _, db := newTestLedger(t)
	order := createBurgerOrder(t, l)

	// Adding nothing is a no-op request, rejected up front
	if _, err := l.AddItems(order.ID, 42, nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("empty add error = %v, want ErrValidation", err)
	}

	updated, err := l.AddItems(order.ID, 42, []ItemInput{{MenuItemID: ptr(uint(2)), Quantity: 1}})
	if err != nil {
		t.Fatalf("AddItems error = %v", err)
	}
	if !updated.Total.Equal(dec("28.00")) {
		t.Errorf("Total = %s, want 28.00", updated.Total)
	}
	if len(updated.Items) != 2 {
		t.Errorf("Items = %d, want 2", len(updated.Items))
	}
	// One log entry for the whole added set, on top of "created"
	if n := countLogs(t, db, order.ID); n != 2 {
		t.Errorf("log rows = %d, want 2", n)
	}
	entry := lastLog(t, db, order.ID)
	if entry.Action != "items_added" {
		t.Errorf("last log = %s, want items_added", entry.Action)
	}
	// Payloads carry the item count before and after the mutation
	if !strings.Contains(entry.OldValue, `"item_count":1`) {
		t.Errorf("old payload should show 1 item, got %s", entry.OldValue)
	}
	if !strings.Contains(entry.NewValue, `"item_count":2`) {
		t.Errorf("new payload should show 2 items, got %s", entry.NewValue)
	}
}

func TestAddItemsToClosedOrderConflicts(t *testing.T) {
	l, _, _ := newTestLedger(t)
	order := createBurgerOrder(t, l)

	if _, err := l.CloseOrder(order.ID, 42); err != nil {
		t.Fatalf("CloseOrder error = %v", err)
	}
	_, err := l.AddItems(order.ID, 42, []ItemInput{{MenuItemID: ptr(uint(2)), Quantity: 1}})
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("AddItems on closed order error = %v, want ErrConflict", err)
	}
}

func TestUpdateItem(t *testing.T) {
	l, _, db := newTestLedger(t)
	order := createBurgerOrder(t, l)
	itemID := order.Items[0].ID

	updated, err := l.UpdateItem(order.ID, itemID, 42, ItemChanges{Quantity: ptr(3)})
	if err != nil {
		t.Fatalf("UpdateItem error = %v", err)
	}
	// 3 × (10.00 + 1.50) = 34.50
	if !updated.Total.Equal(dec("34.50")) {
		t.Errorf("Total = %s, want 34.50", updated.Total)
	}

	entry := lastLog(t, db, order.ID)
	if entry.Action != "item_updated" {
		t.Fatalf("last log = %s, want item_updated", entry.Action)
	}
	if !strings.Contains(entry.OldValue, `"quantity":2`) || !strings.Contains(entry.NewValue, `"quantity":3`) {
		t.Errorf("old/new payloads missing quantities: old=%s new=%s", entry.OldValue, entry.NewValue)
	}
}

func TestUpdateItemClearsModifiers(t *testing.T) {
	l, _, _ := newTestLedger(t)
	order := createBurgerOrder(t, l)

	updated, err := l.UpdateItem(order.ID, order.Items[0].ID, 42, ItemChanges{ModifierIDs: ptr([]uint{})})
	if err != nil {
		t.Fatalf("UpdateItem error = %v", err)
	}
	// 2 × 10.00 without the cheese
	if !updated.Total.Equal(dec("20.00")) {
		t.Errorf("Total = %s, want 20.00", updated.Total)
	}
}

func TestUpdateMissingOrDeletedItem(t *testing.T) {
	l, _, _ := newTestLedger(t)
	order := createBurgerOrder(t, l)
	itemID := order.Items[0].ID

	if _, err := l.UpdateItem(order.ID, 999, 42, ItemChanges{Quantity: ptr(1)}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown item error = %v, want ErrNotFound", err)
	}

	// Keep the order non-empty so the delete is representative
	if _, err := l.AddItems(order.ID, 42, []ItemInput{{MenuItemID: ptr(uint(2)), Quantity: 1}}); err != nil {
		t.Fatalf("AddItems error = %v", err)
	}
	if _, err := l.DeleteItem(order.ID, itemID, 42); err != nil {
		t.Fatalf("DeleteItem error = %v", err)
	}
	if _, err := l.UpdateItem(order.ID, itemID, 42, ItemChanges{Quantity: ptr(1)}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("deleted item error = %v, want ErrNotFound", err)
	}
}

func TestDeleteItemRecomputesAndKeepsAudit(t *testing.T) {
	l, _, db := newTestLedger(t)

	// Two items: 10.00 and 5.00
	order := createBurgerOrder(t, l,
		ItemInput{MenuItemID: ptr(uint(1)), Quantity: 1},
		ItemInput{MenuItemID: ptr(uint(2)), Quantity: 1},
	)
	if !order.Total.Equal(dec("15.00")) {
		t.Fatalf("Total = %s, want 15.00", order.Total)
	}

	var friesItem models.OrderItem
	for _, it := range order.Items {
		if it.Name == "Fries" {
			friesItem = it
		}
	}

	updated, err := l.DeleteItem(order.ID, friesItem.ID, 42)
	if err != nil {
		t.Fatalf("DeleteItem error = %v", err)
	}
	if !updated.Total.Equal(dec("10.00")) {
		t.Errorf("Total = %s, want 10.00", updated.Total)
	}
	if len(updated.Items) != 1 {
		t.Errorf("active items = %d, want 1", len(updated.Items))
	}

	// The row survives with its snapshot for the audit trail
	var row models.OrderItem
	if err := db.First(&row, friesItem.ID).Error; err != nil {
		t.Fatalf("deleted row must stay retrievable: %v", err)
	}
	if row.ItemState != models.ItemStateDeleted || row.Name != "Fries" {
		t.Errorf("deleted row = %+v", row)
	}

	entry := lastLog(t, db, order.ID)
	if entry.Action != "item_deleted" {
		t.Errorf("last log = %s, want item_deleted", entry.Action)
	}
	if !strings.Contains(entry.OldValue, "Fries") {
		t.Errorf("delete log should reference the snapshot name, got %s", entry.OldValue)
	}
	if !strings.Contains(entry.NewValue, `"item_count":1`) {
		t.Errorf("new payload should show 1 remaining item, got %s", entry.NewValue)
	}
}

// Modifier membership is enforced through the same policy on update as
// on create.
func TestUpdateItemRejectsForeignModifier(t *testing.T) {
	l, _, _ := newTestLedger(t)
	order := createBurgerOrder(t, l)

	_, err := l.UpdateItem(order.ID, order.Items[0].ID, 42, ItemChanges{ModifierIDs: ptr([]uint{99})})
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("foreign modifier error = %v, want ErrValidation", err)
	}
}

func TestCloseOrder(t *testing.T) {
	l, _, db := newTestLedger(t)
	order := createBurgerOrder(t, l)

	closed, err := l.CloseOrder(order.ID, 42)
	if err != nil {
		t.Fatalf("CloseOrder error = %v", err)
	}
	if closed.Status != models.OrderStatusClosed {
		t.Errorf("Status = %s, want closed", closed.Status)
	}
	if entry := lastLog(t, db, order.ID); entry.Action != "closed" {
		t.Errorf("last log = %s, want closed", entry.Action)
	}

	if _, err := l.CloseOrder(order.ID, 42); !errors.Is(err, core.ErrConflict) {
		t.Errorf("double close error = %v, want ErrConflict", err)
	}
	if _, err := l.DeleteItem(order.ID, order.Items[0].ID, 42); !errors.Is(err, core.ErrConflict) {
		t.Errorf("delete on closed order error = %v, want ErrConflict", err)
	}
}

func TestRecalculateTotalsIsIdempotentAndRepairs(t *testing.T) {
	l, _, db := newTestLedger(t)
	order := createBurgerOrder(t, l)

	// Corrupt the stored totals behind the ledger's back
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("total", dec("99.99")).Error; err != nil {
		t.Fatalf("corrupt total: %v", err)
	}

	first, err := l.RecalculateTotals(order.ID, 42)
	if err != nil {
		t.Fatalf("RecalculateTotals error = %v", err)
	}
	if !first.Total.Equal(dec("23.00")) {
		t.Errorf("repaired Total = %s, want 23.00", first.Total)
	}

	second, err := l.RecalculateTotals(order.ID, 42)
	if err != nil {
		t.Fatalf("RecalculateTotals error = %v", err)
	}
	if !second.Total.Equal(first.Total) || !second.Subtotal.Equal(first.Subtotal) ||
		!second.ProfitTotal.Equal(first.ProfitTotal) {
		t.Errorf("second recalc differs: first=%+v second=%+v", first, second)
	}
}

// Later catalog edits must never leak into an existing order.
func TestSnapshotFieldsAreImmutable(t *testing.T) {
	l, _, db := newTestLedger(t)
	order := createBurgerOrder(t, l)

	if err := db.Model(&models.MenuItem{}).Where("id = ?", 1).
		Updates(map[string]any{"price": dec("12.00"), "name": "Double Burger"}).Error; err != nil {
		t.Fatalf("edit catalog: %v", err)
	}

	recalced, err := l.RecalculateTotals(order.ID, 42)
	if err != nil {
		t.Fatalf("RecalculateTotals error = %v", err)
	}
	if !recalced.Total.Equal(dec("23.00")) {
		t.Errorf("Total = %s, want 23.00 (snapshot price, not live price)", recalced.Total)
	}
	if recalced.Items[0].Name != "Burger" || !recalced.Items[0].BasePrice.Equal(dec("10.00")) {
		t.Errorf("item snapshot drifted: %+v", recalced.Items[0])
	}
}

func TestComboOrderUsesFixedPrice(t *testing.T) {
	l, _, _ := newTestLedger(t)

	order := createBurgerOrder(t, l, ItemInput{ComboID: ptr(uint(5)), Quantity: 1})
	if !order.Total.Equal(dec("15.00")) {
		t.Errorf("Total = %s, want 15.00", order.Total)
	}
	if order.Items[0].Name != "Burger Meal" {
		t.Errorf("combo snapshot name = %s", order.Items[0].Name)
	}
}

func TestListLogsPagination(t *testing.T) {
	l, _, _ := newTestLedger(t)
	order := createBurgerOrder(t, l)

	for i := 0; i < 4; i++ {
		if _, err := l.AddItems(order.ID, 42, []ItemInput{{MenuItemID: ptr(uint(2)), Quantity: 1}}); err != nil {
			t.Fatalf("AddItems error = %v", err)
		}
	}

	logs, total, err := l.ListLogs(order.ID, 1, 3)
	if err != nil {
		t.Fatalf("ListLogs error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(logs) != 3 {
		t.Errorf("page 1 size = %d, want 3", len(logs))
	}
	if logs[0].Action != "created" {
		t.Errorf("first log = %s, want created", logs[0].Action)
	}

	logs, _, err = l.ListLogs(order.ID, 2, 3)
	if err != nil {
		t.Fatalf("ListLogs error = %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("page 2 size = %d, want 2", len(logs))
	}

	if _, _, err := l.ListLogs(999, 1, 10); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown order error = %v, want ErrNotFound", err)
	}
}

func TestListBySessionAndBilling(t *testing.T) {
	l, _, _ := newTestLedger(t)

	sessionID := uuid.New()
	billingID := uuid.New()
	for i := 0; i < 2; i++ {
		_, err := l.CreateOrder(CreateOrderInput{
			SessionID: sessionID,
			BillingID: &billingID,
			TableID:   3,
			Items:     []ItemInput{{MenuItemID: ptr(uint(2)), Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("CreateOrder error = %v", err)
		}
	}
	createBurgerOrder(t, l) // unrelated session

	bySession, err := l.ListBySession(sessionID)
	if err != nil {
		t.Fatalf("ListBySession error = %v", err)
	}
	if len(bySession) != 2 {
		t.Errorf("ListBySession = %d orders, want 2", len(bySession))
	}

	byBilling, err := l.ListByBilling(billingID)
	if err != nil {
		t.Fatalf("ListByBilling error = %v", err)
	}
	if len(byBilling) != 2 {
		t.Errorf("ListByBilling = %d orders, want 2", len(byBilling))
	}
}
