// Package ledger is the posting engine. Every money movement in the system
// goes through Post, which writes a balanced, immutable transaction or
// nothing at all.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payment-run-settlement-backend/internal/apperrors"
	"payment-run-settlement-backend/internal/config"
	"payment-run-settlement-backend/internal/models"
	"payment-run-settlement-backend/internal/money"
)

// Store is the persistence surface the engine needs. The gorm repository
// implements it; a transaction-bound store gives callers atomicity across a
// batch of postings.
type Store interface {
	CreateTransaction(ctx context.Context, txn *models.LedgerTransaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error)
	ListByAccount(ctx context.Context, companyID, accountID uuid.UUID, limit int) ([]models.LedgerTransaction, error)
}

// DraftEntry is one leg of a posting before it is persisted.
type DraftEntry struct {
	AccountID uuid.UUID
	Direction string
	Amount    decimal.Decimal
}

// Draft is the input to Post.
type Draft struct {
	CompanyID        uuid.UUID
	Currency         string
	TransactionDate  time.Time
	Type             string
	Reference        string
	Description      string
	SourceDocumentID *uuid.UUID
	ReversalOfID     *uuid.UUID
	CreatedBy        string
	Entries          []DraftEntry
}

type Engine struct {
	store Store
	log   *logrus.Logger
}

func NewEngine(store Store, log *logrus.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Post validates and persists a balanced transaction. On any validation
// failure nothing is written.
func (e *Engine) Post(ctx context.Context, draft Draft) (*models.LedgerTransaction, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := &models.LedgerTransaction{
		ID:               uuid.New(),
		CompanyID:        draft.CompanyID,
		Currency:         draft.Currency,
		TransactionDate:  draft.TransactionDate,
		Type:             draft.Type,
		Reference:        draft.Reference,
		Description:      draft.Description,
		SourceDocumentID: draft.SourceDocumentID,
		ReversalOfID:     draft.ReversalOfID,
		CreatedBy:        draft.CreatedBy,
		CreatedAt:        now,
	}
	for _, de := range draft.Entries {
		txn.Entries = append(txn.Entries, models.LedgerEntry{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			AccountID:     de.AccountID,
			Direction:     de.Direction,
			Amount:        de.Amount,
			EntryDate:     draft.TransactionDate,
		})
	}
	txn.Total = txn.DebitTotal()

	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		config.LogError(e.log, "ledger", "Post", txn.ID.String(), err)
		return nil, apperrors.WrapPersistence("ledger: create transaction", err)
	}
	return txn, nil
}

// Reverse materializes a new transaction with every leg's direction flipped.
// The original is never touched; this is the only void mechanism.
func (e *Engine) Reverse(ctx context.Context, transactionID uuid.UUID, actor, reason string) (*models.LedgerTransaction, error) {
	orig, err := e.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, apperrors.WrapPersistence("ledger: load transaction", err)
	}
	if orig == nil {
		return nil, apperrors.NewValidation("transaction_id", "transaction not found")
	}

	draft := Draft{
		CompanyID:        orig.CompanyID,
		Currency:         orig.Currency,
		TransactionDate:  time.Now().UTC(),
		Type:             models.TxnTypeReversal,
		Reference:        orig.Reference,
		Description:      reason,
		SourceDocumentID: orig.SourceDocumentID,
		ReversalOfID:     &orig.ID,
		CreatedBy:        actor,
	}
	for _, entry := range orig.Entries {
		draft.Entries = append(draft.Entries, DraftEntry{
			AccountID: entry.AccountID,
			Direction: flip(entry.Direction),
			Amount:    entry.Amount,
		})
	}
	return e.Post(ctx, draft)
}

// Get returns a transaction with its entries.
func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	txn, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, apperrors.WrapPersistence("ledger: load transaction", err)
	}
	if txn == nil {
		return nil, apperrors.NewValidation("transaction_id", "transaction not found")
	}
	return txn, nil
}

// ListByAccount feeds downstream reporting; the engine itself never reads it.
func (e *Engine) ListByAccount(ctx context.Context, companyID, accountID uuid.UUID, limit int) ([]models.LedgerTransaction, error) {
	txns, err := e.store.ListByAccount(ctx, companyID, accountID, limit)
	if err != nil {
		return nil, apperrors.WrapPersistence("ledger: list by account", err)
	}
	return txns, nil
}

func validateDraft(draft Draft) error {
	if draft.CompanyID == uuid.Nil {
		return apperrors.NewValidation("company_id", "company id is required")
	}
	if draft.Currency == "" {
		return apperrors.NewValidation("currency", "currency is required")
	}
	if len(draft.Entries) < 2 {
		return apperrors.NewValidation("entries", "a transaction needs at least two entries")
	}

	debits := decimal.Zero
	credits := decimal.Zero
	for i, entry := range draft.Entries {
		if entry.AccountID == uuid.Nil {
			return apperrors.NewValidation("entries", fmt.Sprintf("entry %d has no account", i))
		}
		if !money.IsPositive(entry.Amount) {
			return apperrors.NewValidation("entries", fmt.Sprintf("entry %d amount must be greater than zero", i))
		}
		if _, err := money.MinorUnits(entry.Amount); err != nil {
			return apperrors.NewValidation("entries", err.Error())
		}
		switch entry.Direction {
		case models.DirectionDebit:
			debits = debits.Add(entry.Amount)
		case models.DirectionCredit:
			credits = credits.Add(entry.Amount)
		default:
			return apperrors.NewValidation("entries", fmt.Sprintf("entry %d has an unknown direction %q", i, entry.Direction))
		}
	}

	if !debits.Equal(credits) {
		return apperrors.NewValidation("entries",
			"debits "+money.Format2dp(debits)+" do not equal credits "+money.Format2dp(credits))
	}
	return nil
}

func flip(direction string) string {
	if direction == models.DirectionDebit {
		return models.DirectionCredit
	}
	return models.DirectionDebit
}
