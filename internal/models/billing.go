package models

import (
	"time"

	"github.com/google/uuid"
)

// Billing statuses
const (
	BillingStatusOpen      = "open"
	BillingStatusClosed    = "closed"
	BillingStatusPaid      = "paid"
	BillingStatusCancelled = "cancelled"
)

// Session statuses
const (
	SessionStatusActive      = "active"
	SessionStatusClosed      = "closed"
	SessionStatusMoved       = "moved"
	SessionStatusTransferred = "transferred"
)

// Billing - The payable entity for one guest visit. A visit may span
// several sessions when the party moves between tables; orders stay
// attached to their session, the billing only aggregates.
type Billing struct {
	ID            uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerName  string    `json:"customer_name,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	Status        string    `gorm:"size:20;default:'open'" json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Sessions      []Session `gorm:"foreignKey:BillingID" json:"sessions,omitempty"`
}

// Session - One continuous occupation of a table under a billing.
// Moving a party closes the old session row and opens a new one with
// the same billing id; the movement fields keep the trail.
type Session struct {
	ID            uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	BillingID     uuid.UUID  `gorm:"type:char(36);index" json:"billing_id"`
	TableID       uint       `gorm:"index" json:"table_id"`
	ServerID      uint       `json:"server_id"`
	Status        string     `gorm:"size:20;default:'active'" json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	OriginalTable uint       `json:"original_table"`
	MovedToTable  *uint      `json:"moved_to_table,omitempty"`
	MovedAt       *time.Time `json:"moved_at,omitempty"`
}
