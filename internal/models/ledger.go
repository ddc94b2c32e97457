package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry directions.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// Ledger transaction type tags.
const (
	TxnTypePaymentRun = "payment_run"
	TxnTypeManual     = "manual"
	TxnTypeReversal   = "reversal"
)

// Ledger account types the settlement flow depends on.
const (
	AccountTypeBank            = "bank"
	AccountTypeAccountsPayable = "accounts_payable"
)

// LedgerAccount is a chart-of-accounts entry referenced by ledger entries.
type LedgerAccount struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;index;not null" json:"company_id"`
	Code      string    `gorm:"index" json:"code"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerTransaction groups the balanced entries posted for one event. It is
// immutable once written; voiding anything above this layer goes through a
// reversing transaction, never mutation.
type LedgerTransaction struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"company_id"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	TransactionDate  time.Time       `gorm:"index" json:"transaction_date"`
	Type             string          `gorm:"index" json:"type"`
	Reference        string          `json:"reference"`
	Description      string          `gorm:"type:text" json:"description"`
	SourceDocumentID *uuid.UUID      `gorm:"type:uuid;index" json:"source_document_id"`
	ReversalOfID     *uuid.UUID      `gorm:"type:uuid;index" json:"reversal_of_id"`
	Total            decimal.Decimal `gorm:"type:decimal(20,4)" json:"total"`
	Entries          []LedgerEntry   `gorm:"foreignKey:TransactionID" json:"entries"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// LedgerEntry is one leg of a transaction. Amount is always positive; the
// direction tag carries the sign.
type LedgerEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;index;not null" json:"transaction_id"`
	AccountID     uuid.UUID       `gorm:"type:uuid;index;not null" json:"account_id"`
	Direction     string          `gorm:"size:6;not null" json:"direction"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4)" json:"amount"`
	EntryDate     time.Time       `json:"entry_date"`
}

// DebitTotal sums the debit legs.
func (t *LedgerTransaction) DebitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		if e.Direction == DirectionDebit {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// CreditTotal sums the credit legs.
func (t *LedgerTransaction) CreditTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		if e.Direction == DirectionCredit {
			total = total.Add(e.Amount)
		}
	}
	return total
}
