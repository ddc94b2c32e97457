package paymentrun

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-run-settlement-backend/internal/apperrors"
	"payment-run-settlement-backend/internal/models"
	"payment-run-settlement-backend/internal/money"
	"payment-run-settlement-backend/internal/services/ledger"
)

// memData is the shared state behind the in-memory store. All access is
// serialized by memStore's mutex, mirroring the database's transactional
// isolation for these code paths.
type memData struct {
	runs        map[uuid.UUID]*models.PaymentRun
	allocs      []*models.PaymentAllocation
	bills       map[uuid.UUID]*models.Bill
	banks       map[uuid.UUID]*models.BankAccount
	accounts    []*models.LedgerAccount
	txns        map[uuid.UUID]*models.LedgerTransaction
	lockedBills []uuid.UUID
}

func newMemData() *memData {
	return &memData{
		runs:  make(map[uuid.UUID]*models.PaymentRun),
		bills: make(map[uuid.UUID]*models.Bill),
		banks: make(map[uuid.UUID]*models.BankAccount),
		txns:  make(map[uuid.UUID]*models.LedgerTransaction),
	}
}

func (d *memData) clone() *memData {
	out := newMemData()
	for id, run := range d.runs {
		clone := *run
		out.runs[id] = &clone
	}
	for _, a := range d.allocs {
		clone := *a
		out.allocs = append(out.allocs, &clone)
	}
	for id, b := range d.bills {
		clone := *b
		out.bills[id] = &clone
	}
	for id, b := range d.banks {
		clone := *b
		out.banks[id] = &clone
	}
	out.accounts = append(out.accounts, d.accounts...)
	out.lockedBills = append(out.lockedBills, d.lockedBills...)
	for id, txn := range d.txns {
		clone := *txn
		clone.Entries = append([]models.LedgerEntry(nil), txn.Entries...)
		out.txns[id] = &clone
	}
	return out
}

func (d *memData) getRun(id uuid.UUID) *models.PaymentRun {
	run, ok := d.runs[id]
	if !ok {
		return nil
	}
	clone := *run
	clone.Allocations = nil
	for _, a := range d.allocs {
		if a.PaymentRunID == id {
			clone.Allocations = append(clone.Allocations, *a)
		}
	}
	sort.Slice(clone.Allocations, func(i, j int) bool {
		return clone.Allocations[i].Position < clone.Allocations[j].Position
	})
	return &clone
}

// memStore implements Store over memData; Transact holds the lock for the
// whole callback and restores a snapshot on error, so a failed batch leaves
// no partial writes behind.
type memStore struct {
	mu   sync.Mutex
	data *memData
}

type txStore struct {
	store *memStore
}

var (
	_ Store = (*memStore)(nil)
	_ Store = (*txStore)(nil)
)

func (s *memStore) Transact(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(&txStore{store: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *memStore) locked(fn func(d *memData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *memStore) LedgerStore() ledger.Store { return &memLedger{store: s, locked: true} }
func (t *txStore) LedgerStore() ledger.Store  { return &memLedger{store: t.store} }

func (t *txStore) Transact(_ context.Context, fn func(tx Store) error) error { return fn(t) }

// The remaining methods pair up: memStore locks, txStore assumes the
// Transact lock is held.

func createRun(d *memData, run *models.PaymentRun) error {
	clone := *run
	d.runs[run.ID] = &clone
	return nil
}

func advanceVersion(d *memData, runID uuid.UUID, expected int) (int64, error) {
	run, ok := d.runs[runID]
	if !ok || run.Status != models.RunStatusDraft || run.Version != expected {
		return 0, nil
	}
	run.Version++
	return 1, nil
}

func markCompleted(d *memData, runID uuid.UUID, expected int, at time.Time) (int64, error) {
	run, ok := d.runs[runID]
	if !ok || run.Status != models.RunStatusDraft || run.Version != expected {
		return 0, nil
	}
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &at
	run.Version++
	return 1, nil
}

func reduceBalance(d *memData, billID uuid.UUID, amount decimal.Decimal) error {
	bill := d.bills[billID]
	bill.OutstandingBalance = bill.OutstandingBalance.Sub(amount)
	if bill.OutstandingBalance.IsZero() {
		bill.Status = models.BillStatusPaid
	} else {
		bill.Status = models.BillStatusPartiallyPaid
	}
	return nil
}

func billInOpenRun(d *memData, billID uuid.UUID) bool {
	for _, a := range d.allocs {
		if a.BillID != billID {
			continue
		}
		if run, ok := d.runs[a.PaymentRunID]; ok && run.Status == models.RunStatusDraft {
			return true
		}
	}
	return false
}

func (s *memStore) CreateRun(_ context.Context, run *models.PaymentRun) error {
	return s.locked(func(d *memData) error { return createRun(d, run) })
}
func (t *txStore) CreateRun(_ context.Context, run *models.PaymentRun) error {
	return createRun(t.store.data, run)
}

func (s *memStore) GetRun(_ context.Context, id uuid.UUID) (*models.PaymentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.getRun(id), nil
}
func (t *txStore) GetRun(_ context.Context, id uuid.UUID) (*models.PaymentRun, error) {
	return t.store.data.getRun(id), nil
}

func (s *memStore) ListRuns(_ context.Context, companyID uuid.UUID, status string, before *time.Time, limit int) ([]models.PaymentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentRun
	for id, run := range s.data.runs {
		if run.CompanyID != companyID {
			continue
		}
		if status != "" && run.Status != status {
			continue
		}
		if before != nil && !run.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, *s.data.getRun(id))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
func (t *txStore) ListRuns(ctx context.Context, companyID uuid.UUID, status string, before *time.Time, limit int) ([]models.PaymentRun, error) {
	return nil, nil
}

func (s *memStore) BumpRunVersion(_ context.Context, runID uuid.UUID, expected int) (int64, error) {
	var rows int64
	err := s.locked(func(d *memData) error {
		var err error
		rows, err = advanceVersion(d, runID, expected)
		return err
	})
	return rows, err
}
func (t *txStore) BumpRunVersion(_ context.Context, runID uuid.UUID, expected int) (int64, error) {
	return advanceVersion(t.store.data, runID, expected)
}

func (s *memStore) MarkRunCompleted(_ context.Context, runID uuid.UUID, expected int, at time.Time) (int64, error) {
	var rows int64
	err := s.locked(func(d *memData) error {
		var err error
		rows, err = markCompleted(d, runID, expected, at)
		return err
	})
	return rows, err
}
func (t *txStore) MarkRunCompleted(_ context.Context, runID uuid.UUID, expected int, at time.Time) (int64, error) {
	return markCompleted(t.store.data, runID, expected, at)
}

func (s *memStore) UpdateRunTotal(_ context.Context, runID uuid.UUID, total decimal.Decimal) error {
	return s.locked(func(d *memData) error {
		d.runs[runID].Total = total
		return nil
	})
}
func (t *txStore) UpdateRunTotal(_ context.Context, runID uuid.UUID, total decimal.Decimal) error {
	t.store.data.runs[runID].Total = total
	return nil
}

func (s *memStore) CreateAllocation(_ context.Context, alloc *models.PaymentAllocation) error {
	return s.locked(func(d *memData) error {
		clone := *alloc
		d.allocs = append(d.allocs, &clone)
		return nil
	})
}
func (t *txStore) CreateAllocation(_ context.Context, alloc *models.PaymentAllocation) error {
	clone := *alloc
	t.store.data.allocs = append(t.store.data.allocs, &clone)
	return nil
}

func deleteAlloc(d *memData, runID, billID uuid.UUID) int64 {
	var rows int64
	kept := d.allocs[:0]
	for _, a := range d.allocs {
		if a.PaymentRunID == runID && a.BillID == billID {
			rows++
			continue
		}
		kept = append(kept, a)
	}
	d.allocs = kept
	return rows
}

func (s *memStore) DeleteAllocation(_ context.Context, runID, billID uuid.UUID) (int64, error) {
	var rows int64
	err := s.locked(func(d *memData) error {
		rows = deleteAlloc(d, runID, billID)
		return nil
	})
	return rows, err
}
func (t *txStore) DeleteAllocation(_ context.Context, runID, billID uuid.UUID) (int64, error) {
	return deleteAlloc(t.store.data, runID, billID), nil
}

func getBill(d *memData, id uuid.UUID) *models.Bill {
	bill, ok := d.bills[id]
	if !ok {
		return nil
	}
	clone := *bill
	return &clone
}

func (s *memStore) GetBill(_ context.Context, id uuid.UUID) (*models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getBill(s.data, id), nil
}
func (t *txStore) GetBill(_ context.Context, id uuid.UUID) (*models.Bill, error) {
	return getBill(t.store.data, id), nil
}

// The ForUpdate variant records the lock so tests can assert the service
// takes it; the Transact mutex already provides the serialization here.
func getBillLocked(d *memData, id uuid.UUID) *models.Bill {
	d.lockedBills = append(d.lockedBills, id)
	return getBill(d, id)
}

func (s *memStore) GetBillForUpdate(_ context.Context, id uuid.UUID) (*models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getBillLocked(s.data, id), nil
}
func (t *txStore) GetBillForUpdate(_ context.Context, id uuid.UUID) (*models.Bill, error) {
	return getBillLocked(t.store.data, id), nil
}

func (s *memStore) BillAllocatedInOpenRun(_ context.Context, billID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return billInOpenRun(s.data, billID), nil
}
func (t *txStore) BillAllocatedInOpenRun(_ context.Context, billID uuid.UUID) (bool, error) {
	return billInOpenRun(t.store.data, billID), nil
}

func (s *memStore) ReduceBillBalance(_ context.Context, billID uuid.UUID, amount decimal.Decimal) error {
	return s.locked(func(d *memData) error { return reduceBalance(d, billID, amount) })
}
func (t *txStore) ReduceBillBalance(_ context.Context, billID uuid.UUID, amount decimal.Decimal) error {
	return reduceBalance(t.store.data, billID, amount)
}

func getBank(d *memData, id uuid.UUID) *models.BankAccount {
	bank, ok := d.banks[id]
	if !ok {
		return nil
	}
	clone := *bank
	return &clone
}

func (s *memStore) GetBankAccount(_ context.Context, id uuid.UUID) (*models.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getBank(s.data, id), nil
}
func (t *txStore) GetBankAccount(_ context.Context, id uuid.UUID) (*models.BankAccount, error) {
	return getBank(t.store.data, id), nil
}

func accountByType(d *memData, companyID uuid.UUID, accountType string) *models.LedgerAccount {
	for _, a := range d.accounts {
		if a.CompanyID == companyID && a.Type == accountType {
			clone := *a
			return &clone
		}
	}
	return nil
}

func (s *memStore) GetAccountByType(_ context.Context, companyID uuid.UUID, accountType string) (*models.LedgerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return accountByType(s.data, companyID, accountType), nil
}
func (t *txStore) GetAccountByType(_ context.Context, companyID uuid.UUID, accountType string) (*models.LedgerAccount, error) {
	return accountByType(t.store.data, companyID, accountType), nil
}

// memLedger adapts memData to ledger.Store. locked is set when used outside
// Transact.
type memLedger struct {
	store  *memStore
	locked bool
}

func (l *memLedger) CreateTransaction(_ context.Context, txn *models.LedgerTransaction) error {
	write := func(d *memData) error {
		clone := *txn
		clone.Entries = append([]models.LedgerEntry(nil), txn.Entries...)
		d.txns[txn.ID] = &clone
		return nil
	}
	if l.locked {
		return l.store.locked(write)
	}
	return write(l.store.data)
}

func (l *memLedger) GetTransaction(_ context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	txn, ok := l.store.data.txns[id]
	if !ok {
		return nil, nil
	}
	clone := *txn
	return &clone, nil
}

func (l *memLedger) ListByAccount(_ context.Context, companyID, accountID uuid.UUID, limit int) ([]models.LedgerTransaction, error) {
	return nil, nil
}

// --- fixtures ---

type fixture struct {
	store     *memStore
	service   *Service
	companyID uuid.UUID
	bankID    uuid.UUID
	payableID uuid.UUID
	bankGLID  uuid.UUID
	bills     []uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &memStore{data: newMemData()}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	f := &fixture{
		store:     store,
		service:   NewService(store, log),
		companyID: uuid.New(),
		bankID:    uuid.New(),
		payableID: uuid.New(),
		bankGLID:  uuid.New(),
	}

	store.data.accounts = append(store.data.accounts,
		&models.LedgerAccount{ID: f.payableID, CompanyID: f.companyID, Code: "2000", Name: "Accounts Payable", Type: models.AccountTypeAccountsPayable},
		&models.LedgerAccount{ID: f.bankGLID, CompanyID: f.companyID, Code: "1000", Name: "Operating Account", Type: models.AccountTypeBank},
	)
	store.data.banks[f.bankID] = &models.BankAccount{
		ID: f.bankID, CompanyID: f.companyID, Name: "Operating", Currency: "AUD",
		LedgerAccountID: f.bankGLID, BSB: "083-123", AccountNumber: "123456789",
		InstitutionCode: "ANZ", RemitterName: "ACME PTY LTD", DirectEntryID: "301500",
	}

	for _, amount := range []string{"100.00", "250.50", "49.50"} {
		bill := &models.Bill{
			ID: uuid.New(), CompanyID: f.companyID,
			BillNumber: "BILL-" + amount, PayeeName: "Supplier " + amount,
			PayeeBSB: "062-000", PayeeAccountNumber: "987654321",
			Currency: "AUD",
			TotalAmount:        decimal.RequireFromString(amount),
			OutstandingBalance: decimal.RequireFromString(amount),
			Status:             models.BillStatusOpen,
			DueDate:            time.Now().UTC(),
		}
		store.data.bills[bill.ID] = bill
		f.bills = append(f.bills, bill.ID)
	}
	return f
}

func (f *fixture) draftRunWithBills(t *testing.T) *models.PaymentRun {
	t.Helper()
	ctx := context.Background()
	run, err := f.service.CreateRun(ctx, f.companyID, f.bankID, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), "clerk")
	require.NoError(t, err)

	requests := make([]AllocationRequest, 0, len(f.bills))
	for _, id := range f.bills {
		requests = append(requests, AllocationRequest{BillID: id})
	}
	run, err = f.service.AddAllocations(ctx, run.ID, requests)
	require.NoError(t, err)
	return run
}

// --- tests ---

func TestCreateRunStartsDraft(t *testing.T) {
	f := newFixture(t)
	run, err := f.service.CreateRun(context.Background(), f.companyID, f.bankID, time.Now().UTC(), "clerk")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusDraft, run.Status)
	assert.True(t, run.Total.IsZero())
	assert.Empty(t, run.Allocations)
}

func TestAddAllocationsTotals(t *testing.T) {
	f := newFixture(t)
	run := f.draftRunWithBills(t)

	assert.Len(t, run.Allocations, 3)
	assert.Equal(t, "400.00", money.Format2dp(run.Total))
	assert.Equal(t, "400.00", money.Format2dp(run.AllocationTotal()))
	for i, a := range run.Allocations {
		assert.Equal(t, i, a.Position)
	}
}

func TestAddAllocationsPartialAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run, err := f.service.CreateRun(ctx, f.companyID, f.bankID, time.Now().UTC(), "clerk")
	require.NoError(t, err)

	partial := decimal.RequireFromString("60.00")
	run, err = f.service.AddAllocations(ctx, run.ID, []AllocationRequest{
		{BillID: f.bills[0], Amount: &partial},
	})
	require.NoError(t, err)
	assert.Equal(t, "60.00", money.Format2dp(run.Total))

	over := decimal.RequireFromString("9999.00")
	_, err = f.service.AddAllocations(ctx, run.ID, []AllocationRequest{
		{BillID: f.bills[1], Amount: &over},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAddAllocationsRejectsDoubleAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.draftRunWithBills(t)

	other, err := f.service.CreateRun(ctx, f.companyID, f.bankID, time.Now().UTC(), "clerk")
	require.NoError(t, err)
	_, err = f.service.AddAllocations(ctx, other.ID, []AllocationRequest{{BillID: f.bills[0]}})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err), "bill in another open run must conflict")

	// The failed call must not leave any allocation behind.
	got, err := f.service.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Allocations)
}

func TestAddAllocationsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run, err := f.service.CreateRun(ctx, f.companyID, f.bankID, time.Now().UTC(), "clerk")
	require.NoError(t, err)

	// Second request references a missing bill; the first must not stick.
	_, err = f.service.AddAllocations(ctx, run.ID, []AllocationRequest{
		{BillID: f.bills[0]},
		{BillID: uuid.New()},
	})
	require.Error(t, err)

	got, err := f.service.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Allocations)
	assert.True(t, got.Total.IsZero())
}

func TestRemoveAllocationRecomputesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.draftRunWithBills(t)

	run, err := f.service.RemoveAllocation(ctx, run.ID, f.bills[1])
	require.NoError(t, err)
	assert.Len(t, run.Allocations, 2)
	assert.Equal(t, "149.50", money.Format2dp(run.Total))

	_, err = f.service.RemoveAllocation(ctx, run.ID, f.bills[1])
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestReAddAfterRemoveKeepsUniquePositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.draftRunWithBills(t)

	run, err := f.service.RemoveAllocation(ctx, run.ID, f.bills[1])
	require.NoError(t, err)

	run, err = f.service.AddAllocations(ctx, run.ID, []AllocationRequest{{BillID: f.bills[1]}})
	require.NoError(t, err)
	require.Len(t, run.Allocations, 3)

	seen := make(map[int]bool, len(run.Allocations))
	for _, a := range run.Allocations {
		assert.False(t, seen[a.Position], "position %d assigned twice", a.Position)
		seen[a.Position] = true
	}
	assert.Equal(t, 3, run.Allocations[2].Position, "re-added bill sorts after the survivors")
	assert.Equal(t, f.bills[1], run.Allocations[2].BillID)
}

func TestAddAllocationsLocksBillRows(t *testing.T) {
	f := newFixture(t)
	f.draftRunWithBills(t)

	for _, id := range f.bills {
		assert.Contains(t, f.store.data.lockedBills, id,
			"staging must lock the bill row for the duration of the transaction")
	}
}

func TestCompletePostsBalancedTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.draftRunWithBills(t)

	completed, err := f.service.Complete(ctx, run.ID, "approver")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, "400.00", money.Format2dp(completed.Total))

	require.Len(t, f.store.data.txns, 3)
	debitSum := decimal.Zero
	for _, txn := range f.store.data.txns {
		assert.True(t, txn.DebitTotal().Equal(txn.CreditTotal()), "every posting must balance")
		assert.Equal(t, models.TxnTypePaymentRun, txn.Type)
		debitSum = debitSum.Add(txn.DebitTotal())
	}
	assert.Equal(t, "400.00", money.Format2dp(debitSum),
		"posted debits must equal the run total")

	for _, billID := range f.bills {
		bill := f.store.data.bills[billID]
		assert.True(t, bill.OutstandingBalance.IsZero())
		assert.Equal(t, models.BillStatusPaid, bill.Status)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.draftRunWithBills(t)

	first, err := f.service.Complete(ctx, run.ID, "approver")
	require.NoError(t, err)

	second, err := f.service.Complete(ctx, run.ID, "approver")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.RunStatusCompleted, second.Status)
	assert.Len(t, f.store.data.txns, 3, "retry must not duplicate postings")
}

func TestCompleteRejectsEmptyRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run, err := f.service.CreateRun(ctx, f.companyID, f.bankID, time.Now().UTC(), "clerk")
	require.NoError(t, err)

	_, err = f.service.Complete(ctx, run.ID, "approver")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCompleteAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.draftRunWithBills(t)

	// Break the bank account's ledger mapping so postings cannot validate;
	// nothing from the batch may survive.
	f.store.data.banks[f.bankID].LedgerAccountID = uuid.Nil

	_, err := f.service.Complete(ctx, run.ID, "approver")
	require.Error(t, err)

	got, err := f.service.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusDraft, got.Status, "run must stay draft")
	assert.Empty(t, f.store.data.txns, "no partial postings may be retained")
	for _, billID := range f.bills {
		assert.False(t, f.store.data.bills[billID].OutstandingBalance.IsZero(),
			"bill balances must be untouched")
	}
}

func TestMutatingCompletedRunFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.draftRunWithBills(t)
	_, err := f.service.Complete(ctx, run.ID, "approver")
	require.NoError(t, err)

	_, err = f.service.AddAllocations(ctx, run.ID, []AllocationRequest{{BillID: f.bills[0]}})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))

	_, err = f.service.RemoveAllocation(ctx, run.ID, f.bills[0])
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))

	got, err := f.service.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Allocations, 3, "allocations must be unchanged")
}

func TestConcurrentCompleteSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.draftRunWithBills(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Complete(ctx, run.ID, "approver")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.True(t, apperrors.IsConflict(err), "loser must see a conflict, got %v", err)
		}
	}
	got, err := f.service.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Len(t, f.store.data.txns, 3, "exactly one set of postings")
}
