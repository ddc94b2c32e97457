package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"payment-run-settlement-backend/internal/models"
	"payment-run-settlement-backend/internal/services/ledger"
	"payment-run-settlement-backend/internal/services/paymentrun"
)

// PaymentRunStore implements paymentrun.Store over gorm, composing the bill,
// bank account and ledger repositories so a Transact callback sees one
// database transaction across all of them.
type PaymentRunStore struct {
	db       *gorm.DB
	bills    *BillRepository
	accounts *BankAccountRepository
	ledgers  *LedgerRepository
}

func NewPaymentRunStore(db *gorm.DB) *PaymentRunStore {
	return &PaymentRunStore{
		db:       db,
		bills:    NewBillRepository(db),
		accounts: NewBankAccountRepository(db),
		ledgers:  NewLedgerRepository(db),
	}
}

var _ paymentrun.Store = (*PaymentRunStore)(nil)

// Transact runs fn against a store bound to one database transaction.
// Returning an error rolls everything back.
func (s *PaymentRunStore) Transact(ctx context.Context, fn func(tx paymentrun.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewPaymentRunStore(tx))
	})
}

func (s *PaymentRunStore) LedgerStore() ledger.Store {
	return s.ledgers
}

func (s *PaymentRunStore) CreateRun(ctx context.Context, run *models.PaymentRun) error {
	return s.db.WithContext(ctx).Create(run).Error
}

func (s *PaymentRunStore) GetRun(ctx context.Context, id uuid.UUID) (*models.PaymentRun, error) {
	var run models.PaymentRun
	err := s.db.WithContext(ctx).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *PaymentRunStore) ListRuns(ctx context.Context, companyID uuid.UUID, status string, before *time.Time, limit int) ([]models.PaymentRun, error) {
	query := s.db.WithContext(ctx).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}
	var runs []models.PaymentRun
	err := query.Find(&runs).Error
	return runs, err
}

// BumpRunVersion is the optimistic check serializing draft mutation: it only
// succeeds when the caller saw the latest version of a still-draft run.
func (s *PaymentRunStore) BumpRunVersion(ctx context.Context, runID uuid.UUID, expectedVersion int) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.PaymentRun{}).
		Where("id = ? AND status = ? AND version = ?", runID, models.RunStatusDraft, expectedVersion).
		Update("version", gorm.Expr("version + 1"))
	return result.RowsAffected, result.Error
}

// MarkRunCompleted flips draft -> completed with the same optimistic check,
// so two concurrent Complete calls cannot both win.
func (s *PaymentRunStore) MarkRunCompleted(ctx context.Context, runID uuid.UUID, expectedVersion int, at time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.PaymentRun{}).
		Where("id = ? AND status = ? AND version = ?", runID, models.RunStatusDraft, expectedVersion).
		Updates(map[string]interface{}{
			"status":       models.RunStatusCompleted,
			"completed_at": at,
			"version":      gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

func (s *PaymentRunStore) UpdateRunTotal(ctx context.Context, runID uuid.UUID, total decimal.Decimal) error {
	return s.db.WithContext(ctx).
		Model(&models.PaymentRun{}).
		Where("id = ?", runID).
		Update("total", total).Error
}

func (s *PaymentRunStore) CreateAllocation(ctx context.Context, alloc *models.PaymentAllocation) error {
	return s.db.WithContext(ctx).Create(alloc).Error
}

func (s *PaymentRunStore) DeleteAllocation(ctx context.Context, runID, billID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("payment_run_id = ? AND bill_id = ?", runID, billID).
		Delete(&models.PaymentAllocation{})
	return result.RowsAffected, result.Error
}

func (s *PaymentRunStore) GetBill(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	return s.bills.GetBill(ctx, id)
}

func (s *PaymentRunStore) GetBillForUpdate(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	return s.bills.GetBillForUpdate(ctx, id)
}

func (s *PaymentRunStore) BillAllocatedInOpenRun(ctx context.Context, billID uuid.UUID) (bool, error) {
	return s.bills.BillAllocatedInOpenRun(ctx, billID)
}

func (s *PaymentRunStore) ReduceBillBalance(ctx context.Context, billID uuid.UUID, amount decimal.Decimal) error {
	return s.bills.ReduceBillBalance(ctx, billID, amount)
}

func (s *PaymentRunStore) GetBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	return s.accounts.GetBankAccount(ctx, id)
}

func (s *PaymentRunStore) GetAccountByType(ctx context.Context, companyID uuid.UUID, accountType string) (*models.LedgerAccount, error) {
	return s.ledgers.GetAccountByType(ctx, companyID, accountType)
}
