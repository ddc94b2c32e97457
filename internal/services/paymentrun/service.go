// Package paymentrun owns the draft -> completed lifecycle of a payment run:
// staging bill allocations, and the all-or-nothing completion that posts one
// balanced ledger transaction per allocation.
package paymentrun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payment-run-settlement-backend/internal/apperrors"
	"payment-run-settlement-backend/internal/models"
	"payment-run-settlement-backend/internal/money"
	"payment-run-settlement-backend/internal/services/ledger"
)

// Store is the persistence surface for the lifecycle. Transact runs the
// callback against a transaction-bound store; everything written inside
// commits together or not at all. The conditional-update methods return the
// affected-row count so the service can detect a concurrent writer.
type Store interface {
	Transact(ctx context.Context, fn func(tx Store) error) error
	LedgerStore() ledger.Store

	CreateRun(ctx context.Context, run *models.PaymentRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.PaymentRun, error)
	ListRuns(ctx context.Context, companyID uuid.UUID, status string, before *time.Time, limit int) ([]models.PaymentRun, error)
	BumpRunVersion(ctx context.Context, runID uuid.UUID, expectedVersion int) (int64, error)
	MarkRunCompleted(ctx context.Context, runID uuid.UUID, expectedVersion int, at time.Time) (int64, error)
	UpdateRunTotal(ctx context.Context, runID uuid.UUID, total decimal.Decimal) error

	CreateAllocation(ctx context.Context, alloc *models.PaymentAllocation) error
	DeleteAllocation(ctx context.Context, runID, billID uuid.UUID) (int64, error)

	GetBill(ctx context.Context, id uuid.UUID) (*models.Bill, error)
	GetBillForUpdate(ctx context.Context, id uuid.UUID) (*models.Bill, error)
	BillAllocatedInOpenRun(ctx context.Context, billID uuid.UUID) (bool, error)
	ReduceBillBalance(ctx context.Context, billID uuid.UUID, amount decimal.Decimal) error

	GetBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error)
	GetAccountByType(ctx context.Context, companyID uuid.UUID, accountType string) (*models.LedgerAccount, error)
}

// AllocationRequest names one bill to pull into a run. A nil Amount means
// the bill's full outstanding balance; a set Amount is a partial payment and
// the remainder stays open on the bill.
type AllocationRequest struct {
	BillID uuid.UUID
	Amount *decimal.Decimal
}

type Service struct {
	store Store
	log   *logrus.Logger
}

func NewService(store Store, log *logrus.Logger) *Service {
	return &Service{store: store, log: log}
}

// CreateRun starts an empty draft run against one bank account.
func (s *Service) CreateRun(ctx context.Context, companyID, bankAccountID uuid.UUID, runDate time.Time, creator string) (*models.PaymentRun, error) {
	account, err := s.store.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return nil, apperrors.WrapPersistence("paymentrun: load bank account", err)
	}
	if account == nil || account.CompanyID != companyID {
		return nil, apperrors.NewValidation("bank_account_id", "bank account not found")
	}

	run := &models.PaymentRun{
		ID:            uuid.New(),
		CompanyID:     companyID,
		BankAccountID: bankAccountID,
		RunDate:       runDate,
		Status:        models.RunStatusDraft,
		Total:         decimal.Zero,
		CreatedBy:     creator,
		Version:       1,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, apperrors.WrapPersistence("paymentrun: create run", err)
	}
	return run, nil
}

// AddAllocations stages bills onto a draft run. Each bill must be payable,
// not already allocated in another open run, and the amount must fit within
// its outstanding balance. All requested bills land together or none do.
func (s *Service) AddAllocations(ctx context.Context, runID uuid.UUID, requests []AllocationRequest) (*models.PaymentRun, error) {
	if len(requests) == 0 {
		return nil, apperrors.NewValidation("bills", "no bills given")
	}

	var result *models.PaymentRun
	err := s.store.Transact(ctx, func(tx Store) error {
		run, err := fetchRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.Status != models.RunStatusDraft {
			return &apperrors.InvalidStateError{
				Entity: "payment run", ID: run.ID.String(),
				State: run.Status, Operation: "add allocations",
			}
		}
		if err := bumpVersion(ctx, tx, run); err != nil {
			return err
		}

		account, err := tx.GetBankAccount(ctx, run.BankAccountID)
		if err != nil {
			return apperrors.WrapPersistence("paymentrun: load bank account", err)
		}

		// Positions grow past removals so a re-added bill never shares a
		// position with a survivor.
		position := 0
		staged := make(map[uuid.UUID]bool, len(run.Allocations))
		for _, a := range run.Allocations {
			staged[a.BillID] = true
			if a.Position >= position {
				position = a.Position + 1
			}
		}

		total := run.AllocationTotal()
		for _, req := range requests {
			// The row lock serializes concurrent staging of the same bill
			// into different draft runs; without it two transactions both
			// pass the open-run check below and both commit.
			bill, err := tx.GetBillForUpdate(ctx, req.BillID)
			if err != nil {
				return apperrors.WrapPersistence("paymentrun: load bill", err)
			}
			if bill == nil || bill.CompanyID != run.CompanyID {
				return apperrors.NewValidation("bill_id", fmt.Sprintf("bill %s not found", req.BillID))
			}
			if !bill.Payable() {
				return apperrors.NewValidation("bill_id",
					fmt.Sprintf("bill %s is not payable (status %s)", bill.ID, bill.Status))
			}
			if err := money.SameCurrency(bill.Currency, account.Currency); err != nil {
				return apperrors.NewValidation("bill_id", fmt.Sprintf("bill %s: %v", bill.ID, err))
			}
			if staged[bill.ID] {
				return &apperrors.ConflictError{
					Entity: "bill", ID: bill.ID.String(),
					Reason: "already allocated in this run",
				}
			}
			allocated, err := tx.BillAllocatedInOpenRun(ctx, bill.ID)
			if err != nil {
				return apperrors.WrapPersistence("paymentrun: check open allocations", err)
			}
			if allocated {
				return &apperrors.ConflictError{
					Entity: "bill", ID: bill.ID.String(),
					Reason: "already allocated in another open run",
				}
			}

			amount := bill.OutstandingBalance
			if req.Amount != nil {
				amount = *req.Amount
			}
			if !money.IsPositive(amount) {
				return apperrors.NewValidation("amount",
					fmt.Sprintf("bill %s: allocation amount must be greater than zero", bill.ID))
			}
			if amount.GreaterThan(bill.OutstandingBalance) {
				return apperrors.NewValidation("amount",
					fmt.Sprintf("bill %s: allocation %s exceeds outstanding balance %s",
						bill.ID, money.Format2dp(amount), money.Format2dp(bill.OutstandingBalance)))
			}

			alloc := &models.PaymentAllocation{
				ID:           uuid.New(),
				PaymentRunID: run.ID,
				BillID:       bill.ID,
				Amount:       amount,
				Position:     position,
				CreatedAt:    time.Now().UTC(),
			}
			if err := tx.CreateAllocation(ctx, alloc); err != nil {
				return apperrors.WrapPersistence("paymentrun: create allocation", err)
			}
			staged[bill.ID] = true
			position++
			total = total.Add(amount)
		}

		if err := tx.UpdateRunTotal(ctx, run.ID, total); err != nil {
			return apperrors.WrapPersistence("paymentrun: update total", err)
		}
		result, err = fetchRun(ctx, tx, runID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveAllocation drops one bill from a draft run and recomputes the total.
func (s *Service) RemoveAllocation(ctx context.Context, runID, billID uuid.UUID) (*models.PaymentRun, error) {
	var result *models.PaymentRun
	err := s.store.Transact(ctx, func(tx Store) error {
		run, err := fetchRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.Status != models.RunStatusDraft {
			return &apperrors.InvalidStateError{
				Entity: "payment run", ID: run.ID.String(),
				State: run.Status, Operation: "remove allocation",
			}
		}
		if err := bumpVersion(ctx, tx, run); err != nil {
			return err
		}

		rows, err := tx.DeleteAllocation(ctx, run.ID, billID)
		if err != nil {
			return apperrors.WrapPersistence("paymentrun: delete allocation", err)
		}
		if rows == 0 {
			return apperrors.NewValidation("bill_id", fmt.Sprintf("bill %s is not allocated in this run", billID))
		}

		run, err = fetchRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if err := tx.UpdateRunTotal(ctx, run.ID, run.AllocationTotal()); err != nil {
			return apperrors.WrapPersistence("paymentrun: update total", err)
		}
		result, err = fetchRun(ctx, tx, runID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Complete flips a draft run to completed. For every allocation it posts one
// balanced transaction (debit accounts payable, credit the bank account's
// ledger account) and reduces the bill's balance. The whole batch commits
// together; any posting failure leaves the run draft with nothing retained.
// Calling Complete on an already completed run is a no-op success.
func (s *Service) Complete(ctx context.Context, runID uuid.UUID, actor string) (*models.PaymentRun, error) {
	var result *models.PaymentRun
	err := s.store.Transact(ctx, func(tx Store) error {
		run, err := fetchRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.Status == models.RunStatusCompleted {
			result = run
			return nil
		}
		if len(run.Allocations) == 0 {
			return apperrors.NewValidation("allocations", "cannot complete a run with no allocations")
		}

		rows, err := tx.MarkRunCompleted(ctx, run.ID, run.Version, time.Now().UTC())
		if err != nil {
			return apperrors.WrapPersistence("paymentrun: mark completed", err)
		}
		if rows == 0 {
			return &apperrors.ConflictError{
				Entity: "payment run", ID: run.ID.String(),
				Reason: "modified concurrently, re-fetch and retry",
			}
		}

		account, err := tx.GetBankAccount(ctx, run.BankAccountID)
		if err != nil {
			return apperrors.WrapPersistence("paymentrun: load bank account", err)
		}
		payable, err := tx.GetAccountByType(ctx, run.CompanyID, models.AccountTypeAccountsPayable)
		if err != nil {
			return apperrors.WrapPersistence("paymentrun: load payable account", err)
		}
		if payable == nil {
			return apperrors.NewValidation("company_id", "company has no accounts payable account")
		}

		engine := ledger.NewEngine(tx.LedgerStore(), s.log)
		for _, alloc := range run.Allocations {
			bill, err := tx.GetBill(ctx, alloc.BillID)
			if err != nil {
				return apperrors.WrapPersistence("paymentrun: load bill", err)
			}
			draft := ledger.Draft{
				CompanyID:        run.CompanyID,
				Currency:         account.Currency,
				TransactionDate:  run.RunDate,
				Type:             models.TxnTypePaymentRun,
				Reference:        bill.BillNumber,
				Description:      fmt.Sprintf("payment to %s", bill.PayeeName),
				SourceDocumentID: &alloc.ID,
				CreatedBy:        actor,
				Entries: []ledger.DraftEntry{
					{AccountID: payable.ID, Direction: models.DirectionDebit, Amount: alloc.Amount},
					{AccountID: account.LedgerAccountID, Direction: models.DirectionCredit, Amount: alloc.Amount},
				},
			}
			if _, err := engine.Post(ctx, draft); err != nil {
				return fmt.Errorf("posting allocation for bill %s: %w", bill.ID, err)
			}
			if err := tx.ReduceBillBalance(ctx, bill.ID, alloc.Amount); err != nil {
				return apperrors.WrapPersistence("paymentrun: reduce bill balance", err)
			}
		}

		result, err = fetchRun(ctx, tx, runID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a run with its allocations in insertion order.
func (s *Service) Get(ctx context.Context, runID uuid.UUID) (*models.PaymentRun, error) {
	return fetchRun(ctx, s.store, runID)
}

// List returns runs for a company newest first, optionally filtered by
// status. A non-nil before cursor pages past runs created at or after it.
func (s *Service) List(ctx context.Context, companyID uuid.UUID, status string, before *time.Time, limit int) ([]models.PaymentRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	runs, err := s.store.ListRuns(ctx, companyID, status, before, limit)
	if err != nil {
		return nil, apperrors.WrapPersistence("paymentrun: list runs", err)
	}
	return runs, nil
}

func fetchRun(ctx context.Context, store Store, runID uuid.UUID) (*models.PaymentRun, error) {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return nil, apperrors.WrapPersistence("paymentrun: load run", err)
	}
	if run == nil {
		return nil, apperrors.NewValidation("run_id", "payment run not found")
	}
	return run, nil
}

func bumpVersion(ctx context.Context, tx Store, run *models.PaymentRun) error {
	rows, err := tx.BumpRunVersion(ctx, run.ID, run.Version)
	if err != nil {
		return apperrors.WrapPersistence("paymentrun: bump version", err)
	}
	if rows == 0 {
		return &apperrors.ConflictError{
			Entity: "payment run", ID: run.ID.String(),
			Reason: "modified concurrently, re-fetch and retry",
		}
	}
	return nil
}
