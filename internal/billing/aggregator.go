package billing

import (
	"errors"
	"fmt"
	"time"

	"go-pos-ledger/internal/core"
	"go-pos-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service aggregates one guest visit across its table sessions. Orders
// stay owned by their session; the billing only rolls them up.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// OpenBilling creates a billing with its first active session.
func (s *Service) OpenBilling(customerName, customerPhone string, tableID, serverID uint) (*models.Billing, error) {
	if err := s.checkTableFree(tableID); err != nil {
		return nil, err
	}

	billing := models.Billing{
		ID:            uuid.New(),
		CustomerName:  customerName,
		CustomerPhone: customerPhone,
		Status:        models.BillingStatusOpen,
	}
	session := models.Session{
		ID:            uuid.New(),
		BillingID:     billing.ID,
		TableID:       tableID,
		ServerID:      serverID,
		Status:        models.SessionStatusActive,
		StartedAt:     time.Now(),
		OriginalTable: tableID,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&billing).Error; err != nil {
			return err
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return nil, err
	}
	billing.Sessions = []models.Session{session}
	return &billing, nil
}

// Summary is the consolidated view of one billing.
type Summary struct {
	BillingID     uuid.UUID       `json:"billing_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Status        string          `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Total         decimal.Decimal `json:"total"`
	OrderCount    int             `json:"order_count"`
	SessionCount  int             `json:"session_count"`
	CurrentTables []uint          `json:"current_tables"`
	Movements     []string        `json:"movements"`
}

// Summarize walks sessions → orders and returns consolidated totals
// plus the table movement trail. Pure read, no side effects.
func (s *Service) Summarize(billingID uuid.UUID) (*Summary, error) {
	var billing models.Billing
	err := s.DB.Preload("Sessions", func(db *gorm.DB) *gorm.DB {
		return db.Order("started_at")
	}).First(&billing, "id = ?", billingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFoundf("billing %s", billingID)
	}
	if err != nil {
		return nil, err
	}

	out := &Summary{
		BillingID:     billing.ID,
		CustomerName:  billing.CustomerName,
		Status:        billing.Status,
		Subtotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
		TaxTotal:      decimal.Zero,
		Total:         decimal.Zero,
		SessionCount:  len(billing.Sessions),
	}

	sessionIDs := make([]uuid.UUID, 0, len(billing.Sessions))
	for _, sess := range billing.Sessions {
		sessionIDs = append(sessionIDs, sess.ID)
		if sess.Status == models.SessionStatusActive {
			out.CurrentTables = append(out.CurrentTables, sess.TableID)
		}
		if sess.MovedToTable != nil {
			out.Movements = append(out.Movements, fmt.Sprintf("Table %d → Table %d", sess.TableID, *sess.MovedToTable))
		}
	}

	if len(sessionIDs) > 0 {
		var orders []models.Order
		if err := s.DB.Where("session_id IN ?", sessionIDs).Find(&orders).Error; err != nil {
			return nil, err
		}
		for _, o := range orders {
			out.OrderCount++
			out.Subtotal = out.Subtotal.Add(o.Subtotal)
			out.DiscountTotal = out.DiscountTotal.Add(o.DiscountTotal)
			out.TaxTotal = out.TaxTotal.Add(o.TaxTotal)
			out.Total = out.Total.Add(o.Total)
		}
	}
	return out, nil
}

// MoveSession relocates a party: the current session row closes with a
// movement record and a fresh session opens on the destination table
// under the same billing. Orders keep referencing the old session id, so
// nothing about them changes.
func (s *Service) MoveSession(sessionID uuid.UUID, toTable uint) (*models.Session, error) {
	var current models.Session
	err := s.DB.First(&current, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFoundf("session %s", sessionID)
	}
	if err != nil {
		return nil, err
	}
	if current.Status != models.SessionStatusActive {
		return nil, core.Conflictf("session %s is %s", sessionID, current.Status)
	}
	if current.TableID == toTable {
		return nil, core.Validationf("session %s is already on table %d", sessionID, toTable)
	}
	if err := s.checkTableFree(toTable); err != nil {
		return nil, err
	}

	now := time.Now()
	next := models.Session{
		ID:            uuid.New(),
		BillingID:     current.BillingID,
		TableID:       toTable,
		ServerID:      current.ServerID,
		Status:        models.SessionStatusActive,
		StartedAt:     now,
		OriginalTable: current.OriginalTable,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).Where("id = ?", current.ID).Updates(map[string]any{
			"status":         models.SessionStatusMoved,
			"ended_at":       now,
			"moved_to_table": toTable,
			"moved_at":       now,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&next).Error
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// CloseBilling closes every active session and the billing itself.
func (s *Service) CloseBilling(billingID uuid.UUID) (*models.Billing, error) {
	return s.transition(billingID, models.BillingStatusClosed, models.BillingStatusOpen)
}

// SettleBilling marks a closed billing as paid.
func (s *Service) SettleBilling(billingID uuid.UUID) (*models.Billing, error) {
	return s.transition(billingID, models.BillingStatusPaid, models.BillingStatusOpen, models.BillingStatusClosed)
}

// CancelBilling voids the billing so the visit stops accruing; the
// orders themselves keep their audit trail.
func (s *Service) CancelBilling(billingID uuid.UUID) (*models.Billing, error) {
	return s.transition(billingID, models.BillingStatusCancelled, models.BillingStatusOpen)
}

func (s *Service) transition(billingID uuid.UUID, to string, from ...string) (*models.Billing, error) {
	var billing models.Billing
	err := s.DB.First(&billing, "id = ?", billingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.NotFoundf("billing %s", billingID)
	}
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, f := range from {
		if billing.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, core.Conflictf("billing %s is %s, cannot become %s", billingID, billing.Status, to)
	}

	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).
			Where("billing_id = ? AND status = ?", billingID, models.SessionStatusActive).
			Updates(map[string]any{"status": models.SessionStatusClosed, "ended_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Billing{}).Where("id = ?", billingID).
			Update("status", to).Error
	})
	if err != nil {
		return nil, err
	}
	billing.Status = to
	return &billing, nil
}

func (s *Service) checkTableFree(tableID uint) error {
	var count int64
	if err := s.DB.Model(&models.Session{}).
		Where("table_id = ? AND status = ?", tableID, models.SessionStatusActive).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return core.Conflictf("table %d already has an active session", tableID)
	}
	return nil
}
