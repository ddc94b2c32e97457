package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankFeedItem is one externally reported bank-statement line. Imported by
// an external feed collaborator and immutable afterwards; matching only ever
// writes to the reconciliation match log, never back onto the item.
type BankFeedItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"company_id"`
	BankAccountID uuid.UUID       `gorm:"type:uuid;index;not null" json:"bank_account_id"`
	FeedDate      time.Time       `gorm:"index" json:"feed_date"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}
