package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment run statuses. A run is created draft and completes exactly once;
// there is no other transition.
const (
	RunStatusDraft     = "draft"
	RunStatusCompleted = "completed"
)

// PaymentRun is a batch of supplier payments settled together against one
// bank account on one date. Version backs the optimistic check that
// serializes allocation mutation and completion per run.
type PaymentRun struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID           `gorm:"type:uuid;index;not null" json:"company_id"`
	BankAccountID uuid.UUID           `gorm:"type:uuid;index;not null" json:"bank_account_id"`
	RunDate       time.Time           `json:"run_date"`
	Status        string              `gorm:"index" json:"status"`
	Total         decimal.Decimal     `gorm:"type:decimal(20,4)" json:"total"`
	Notes         string              `gorm:"type:text" json:"notes"`
	CreatedBy     string              `json:"created_by"`
	RemittanceID  *uuid.UUID          `gorm:"type:uuid" json:"remittance_id"`
	Version       int                 `gorm:"not null;default:1" json:"version"`
	Allocations   []PaymentAllocation `gorm:"foreignKey:PaymentRunID" json:"allocations"`
	CompletedAt   *time.Time          `json:"completed_at"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// PaymentAllocation links one bill to one run with the amount being paid.
// Position preserves insertion order so completion postings and generated
// files come out the same on every retry.
type PaymentAllocation struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentRunID uuid.UUID       `gorm:"type:uuid;index;not null" json:"payment_run_id"`
	BillID       uuid.UUID       `gorm:"type:uuid;index;not null" json:"bill_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	Position     int             `gorm:"not null" json:"position"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AllocationTotal sums the allocation amounts in position order.
func (r *PaymentRun) AllocationTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}
