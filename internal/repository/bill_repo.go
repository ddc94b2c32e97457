package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payment-run-settlement-backend/internal/models"
)

type BillRepository struct {
	db *gorm.DB
}

func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

func (r *BillRepository) CreateBill(ctx context.Context, bill *models.Bill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

func (r *BillRepository) GetBill(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	var bill models.Bill
	err := r.db.WithContext(ctx).First(&bill, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetBillForUpdate loads the bill under SELECT ... FOR UPDATE. Call inside a
// transaction; the lock holds until commit, so two transactions staging the
// same bill serialize instead of both passing the open-run check.
func (r *BillRepository) GetBillForUpdate(ctx context.Context, id uuid.UUID) (*models.Bill, error) {
	var bill models.Bill
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&bill, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// BillAllocatedInOpenRun reports whether the bill already sits in any draft
// run. This is the explicit guard against double-allocating one outstanding
// balance across runs.
func (r *BillRepository) BillAllocatedInOpenRun(ctx context.Context, billID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentAllocation{}).
		Joins("JOIN payment_runs ON payment_runs.id = payment_allocations.payment_run_id").
		Where("payment_allocations.bill_id = ? AND payment_runs.status = ?", billID, models.RunStatusDraft).
		Count(&count).Error
	return count > 0, err
}

// ReduceBillBalance subtracts a settled amount and moves the bill's status
// along: partially_paid while anything remains, paid at zero.
func (r *BillRepository) ReduceBillBalance(ctx context.Context, billID uuid.UUID, amount decimal.Decimal) error {
	var bill models.Bill
	if err := r.db.WithContext(ctx).First(&bill, "id = ?", billID).Error; err != nil {
		return err
	}
	remaining := bill.OutstandingBalance.Sub(amount)
	status := models.BillStatusPartiallyPaid
	if remaining.IsZero() {
		status = models.BillStatusPaid
	}
	return r.db.WithContext(ctx).Model(&bill).Updates(map[string]interface{}{
		"outstanding_balance": remaining,
		"status":              status,
	}).Error
}
