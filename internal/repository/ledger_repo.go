package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"payment-run-settlement-backend/internal/models"
)

// LedgerRepository persists ledger transactions and accounts. It implements
// ledger.Store; binding it to a *gorm.DB transaction gives batch atomicity.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreateTransaction writes the header and all entries in one statement
// batch; gorm wraps the association insert in a transaction, so readers
// never see a partial posting.
func (r *LedgerRepository) CreateTransaction(ctx context.Context, txn *models.LedgerTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *LedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	var txn models.LedgerTransaction
	err := r.db.WithContext(ctx).Preload("Entries").First(&txn, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *LedgerRepository) ListByAccount(ctx context.Context, companyID, accountID uuid.UUID, limit int) ([]models.LedgerTransaction, error) {
	var txns []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Preload("Entries").
		Joins("JOIN ledger_entries ON ledger_entries.transaction_id = ledger_transactions.id").
		Where("ledger_transactions.company_id = ? AND ledger_entries.account_id = ?", companyID, accountID).
		Order("ledger_transactions.transaction_date DESC").
		Limit(limit).
		Distinct().
		Find(&txns).Error
	return txns, err
}

func (r *LedgerRepository) CandidateTransactions(ctx context.Context, companyID uuid.UUID, currency string, from, to time.Time) ([]models.LedgerTransaction, error) {
	var txns []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND currency = ? AND transaction_date BETWEEN ? AND ?",
			companyID, currency, from, to).
		Order("transaction_date ASC").
		Find(&txns).Error
	return txns, err
}

func (r *LedgerRepository) GetAccountByType(ctx context.Context, companyID uuid.UUID, accountType string) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	err := r.db.WithContext(ctx).
		First(&account, "company_id = ? AND type = ?", companyID, accountType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *LedgerRepository) CreateAccount(ctx context.Context, account *models.LedgerAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}
