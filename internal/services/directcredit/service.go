package directcredit

import (
	"context"

	"github.com/google/uuid"

	"payment-run-settlement-backend/internal/apperrors"
	"payment-run-settlement-backend/internal/models"
)

// Store is the read surface for flattening a completed run into settled
// items. The payment run store satisfies it.
type Store interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.PaymentRun, error)
	GetBill(ctx context.Context, id uuid.UUID) (*models.Bill, error)
	GetBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// EncodeRun loads a completed run and encodes its settled allocations in
// insertion order. Safe to call repeatedly; the same run yields the same
// bytes every time.
func (s *Service) EncodeRun(ctx context.Context, runID uuid.UUID, format string) (*Result, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, apperrors.WrapPersistence("directcredit: load run", err)
	}
	if run == nil {
		return nil, apperrors.NewValidation("run_id", "payment run not found")
	}
	if run.Status != models.RunStatusCompleted {
		return nil, &apperrors.InvalidStateError{
			Entity: "payment run", ID: run.ID.String(),
			State: run.Status, Operation: "encode bank file",
		}
	}

	account, err := s.store.GetBankAccount(ctx, run.BankAccountID)
	if err != nil {
		return nil, apperrors.WrapPersistence("directcredit: load bank account", err)
	}
	if account == nil {
		return nil, apperrors.NewValidation("bank_account_id", "bank account not found")
	}

	items := make([]SettledItem, 0, len(run.Allocations))
	for _, alloc := range run.Allocations {
		bill, err := s.store.GetBill(ctx, alloc.BillID)
		if err != nil {
			return nil, apperrors.WrapPersistence("directcredit: load bill", err)
		}
		if bill == nil {
			return nil, apperrors.NewValidation("bill_id", "allocated bill "+alloc.BillID.String()+" not found")
		}
		items = append(items, SettledItem{
			PayeeName:     bill.PayeeName,
			BSB:           bill.PayeeBSB,
			AccountNumber: bill.PayeeAccountNumber,
			Amount:        alloc.Amount,
			Reference:     bill.BillNumber,
		})
	}

	settings := Settings{
		BSB:             account.BSB,
		AccountNumber:   account.AccountNumber,
		InstitutionCode: account.InstitutionCode,
		RemitterName:    account.RemitterName,
		DirectEntryID:   account.DirectEntryID,
	}
	return Encode(run.RunDate, run.ID.String(), items, settings, format)
}
