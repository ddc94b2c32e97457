package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bill statuses.
const (
	BillStatusOpen          = "open"
	BillStatusPartiallyPaid = "partially_paid"
	BillStatusPaid          = "paid"
	BillStatusVoid          = "void"
)

// Bill is a payable obligation owed to a supplier. OutstandingBalance is
// what is still unpaid; it only ever decreases, via completed payment runs.
type Bill struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"company_id"`
	BillNumber         string          `gorm:"index" json:"bill_number"`
	PayeeName          string          `gorm:"index" json:"payee_name"`
	PayeeBSB           string          `json:"payee_bsb"`
	PayeeAccountNumber string          `json:"payee_account_number"`
	Currency           string          `gorm:"size:3;not null" json:"currency"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(20,4)" json:"total_amount"`
	OutstandingBalance decimal.Decimal `gorm:"type:decimal(20,4)" json:"outstanding_balance"`
	Status             string          `gorm:"index" json:"status"`
	DueDate            time.Time       `json:"due_date"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Payable reports whether the bill can be pulled into a payment run.
func (b *Bill) Payable() bool {
	return (b.Status == BillStatusOpen || b.Status == BillStatusPartiallyPaid) &&
		b.OutstandingBalance.Sign() > 0
}
