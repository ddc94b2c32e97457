package models

import (
	"time"

	"github.com/google/uuid"
)

// BankAccount is the paying account a run settles against. The bank-file
// fields are the per-bank settings the direct credit encoder reads; they are
// data, not code, so a new bank only needs a new row.
type BankAccount struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID       uuid.UUID `gorm:"type:uuid;index;not null" json:"company_id"`
	Name            string    `json:"name"`
	Currency        string    `gorm:"size:3;not null" json:"currency"`
	LedgerAccountID uuid.UUID `gorm:"type:uuid;not null" json:"ledger_account_id"`
	BSB             string    `json:"bsb"`
	AccountNumber   string    `json:"account_number"`
	InstitutionCode string    `gorm:"size:3" json:"institution_code"`
	RemitterName    string    `json:"remitter_name"`
	DirectEntryID   string    `gorm:"size:6" json:"direct_entry_id"`
	CreatedAt       time.Time `json:"created_at"`
}
