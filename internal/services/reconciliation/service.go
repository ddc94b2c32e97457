// Package reconciliation maintains the match log linking bank feed items to
// ledger transactions. The log is append-only: a new match supersedes the
// previous one by deactivating it, and history is never deleted. At most one
// match per feed item is active at any time.
package reconciliation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"payment-run-settlement-backend/internal/apperrors"
	"payment-run-settlement-backend/internal/models"
	"payment-run-settlement-backend/internal/services/matching"
)

// Store is the persistence surface. Transact serializes the
// deactivate-then-activate step so two concurrent match attempts on the
// same feed item can never both end up active.
type Store interface {
	Transact(ctx context.Context, fn func(tx Store) error) error

	GetFeedItem(ctx context.Context, id uuid.UUID) (*models.BankFeedItem, error)
	GetFeedItemForUpdate(ctx context.Context, id uuid.UUID) (*models.BankFeedItem, error)
	CreateFeedItem(ctx context.Context, item *models.BankFeedItem) error
	GetBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error)
	CandidateTransactions(ctx context.Context, companyID uuid.UUID, currency string, from, to time.Time) ([]models.LedgerTransaction, error)

	ActiveMatch(ctx context.Context, feedItemID uuid.UUID) (*models.ReconciliationMatch, error)
	ActiveMatchForTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ReconciliationMatch, error)
	DeactivateMatch(ctx context.Context, matchID uuid.UUID, at time.Time) (int64, error)
	CreateMatch(ctx context.Context, match *models.ReconciliationMatch) error
	MatchHistory(ctx context.Context, feedItemID uuid.UUID) ([]models.ReconciliationMatch, error)
	CountActiveByType(ctx context.Context, companyID uuid.UUID) (map[string]int64, error)
}

type Service struct {
	store Store
	log   *logrus.Logger
}

func NewService(store Store, log *logrus.Logger) *Service {
	return &Service{store: store, log: log}
}

var validMatchTypes = map[string]bool{
	models.MatchTypeExactAmount: true,
	models.MatchTypeAuto:        true,
	models.MatchTypeManual:      true,
	models.MatchTypeRule:        true,
	models.MatchTypeSplit:       true,
}

// Match links a feed item to a transaction. Any existing active match for
// the item is deactivated first; both writes commit together. A transaction
// already actively matched to a different item is rejected unless the match
// type is split.
func (s *Service) Match(ctx context.Context, feedItemID, transactionID uuid.UUID, matchType, actor string) (*models.ReconciliationMatch, error) {
	if !validMatchTypes[matchType] {
		return nil, apperrors.NewValidation("match_type", "unknown match type "+matchType)
	}

	var result *models.ReconciliationMatch
	err := s.store.Transact(ctx, func(tx Store) error {
		// The row lock serializes concurrent matches on the same item; two
		// first-time matches would otherwise both see no active row and
		// both insert one.
		item, err := tx.GetFeedItemForUpdate(ctx, feedItemID)
		if err != nil {
			return apperrors.WrapPersistence("reconciliation: load feed item", err)
		}
		if item == nil {
			return apperrors.NewValidation("feed_item_id", "feed item not found")
		}
		txn, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return apperrors.WrapPersistence("reconciliation: load transaction", err)
		}
		if txn == nil || txn.CompanyID != item.CompanyID {
			return apperrors.NewValidation("transaction_id", "ledger transaction not found")
		}

		if matchType != models.MatchTypeSplit {
			other, err := tx.ActiveMatchForTransaction(ctx, transactionID)
			if err != nil {
				return apperrors.WrapPersistence("reconciliation: check transaction match", err)
			}
			if other != nil && other.FeedItemID != feedItemID {
				return &apperrors.ConflictError{
					Entity: "ledger transaction", ID: transactionID.String(),
					Reason: "already matched to feed item " + other.FeedItemID.String(),
				}
			}
		}

		now := time.Now().UTC()
		if current, err := tx.ActiveMatch(ctx, feedItemID); err != nil {
			return apperrors.WrapPersistence("reconciliation: load active match", err)
		} else if current != nil {
			if err := deactivate(ctx, tx, current, now); err != nil {
				return err
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"feed_amount":        item.Amount,
			"transaction_total":  txn.Total,
			"feed_description":   item.Description,
			"transaction_number": txn.Reference,
		})
		match := &models.ReconciliationMatch{
			ID:            uuid.New(),
			CompanyID:     item.CompanyID,
			FeedItemID:    feedItemID,
			TransactionID: transactionID,
			MatchType:     matchType,
			Active:        true,
			MatchedBy:     actor,
			Details:       details,
			MatchedAt:     now,
		}
		if err := tx.CreateMatch(ctx, match); err != nil {
			return apperrors.WrapPersistence("reconciliation: create match", err)
		}
		result = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unmatch deactivates the current active match with no replacement. History
// is retained.
func (s *Service) Unmatch(ctx context.Context, feedItemID uuid.UUID, actor string) error {
	return s.store.Transact(ctx, func(tx Store) error {
		if _, err := fetchFeedItem(ctx, tx, feedItemID); err != nil {
			return err
		}
		current, err := tx.ActiveMatch(ctx, feedItemID)
		if err != nil {
			return apperrors.WrapPersistence("reconciliation: load active match", err)
		}
		if current == nil {
			return &apperrors.InvalidStateError{
				Entity: "feed item", ID: feedItemID.String(),
				State: "unmatched", Operation: "unmatch",
			}
		}
		return deactivate(ctx, tx, current, time.Now().UTC())
	})
}

// AutoMatch applies the ranking engine to an unmatched feed item and
// activates the best conflict-free candidate. Only an exact-amount winner is
// auto-activated; anything weaker is left for a human.
func (s *Service) AutoMatch(ctx context.Context, feedItemID uuid.UUID, actor string) (*models.ReconciliationMatch, error) {
	item, err := fetchFeedItem(ctx, s.store, feedItemID)
	if err != nil {
		return nil, err
	}
	account, err := s.store.GetBankAccount(ctx, item.BankAccountID)
	if err != nil {
		return nil, apperrors.WrapPersistence("reconciliation: load bank account", err)
	}
	if account == nil {
		return nil, apperrors.NewValidation("bank_account_id", "bank account not found")
	}

	window := time.Duration(matching.WindowDays) * 24 * time.Hour
	transactions, err := s.store.CandidateTransactions(ctx, item.CompanyID, account.Currency,
		item.FeedDate.Add(-window), item.FeedDate.Add(window))
	if err != nil {
		return nil, apperrors.WrapPersistence("reconciliation: load candidates", err)
	}

	for _, candidate := range matching.Rank(item, account.Currency, transactions) {
		if !candidate.ExactAmount() {
			break
		}
		other, err := s.store.ActiveMatchForTransaction(ctx, candidate.Transaction.ID)
		if err != nil {
			return nil, apperrors.WrapPersistence("reconciliation: check transaction match", err)
		}
		if other != nil && other.FeedItemID != feedItemID {
			continue
		}
		return s.Match(ctx, feedItemID, candidate.Transaction.ID, models.MatchTypeExactAmount, actor)
	}
	return nil, apperrors.NewValidation("feed_item_id", "no unambiguous candidate for feed item")
}

// CurrentMatch returns the single active match for a feed item, or nil.
func (s *Service) CurrentMatch(ctx context.Context, feedItemID uuid.UUID) (*models.ReconciliationMatch, error) {
	if _, err := fetchFeedItem(ctx, s.store, feedItemID); err != nil {
		return nil, err
	}
	match, err := s.store.ActiveMatch(ctx, feedItemID)
	if err != nil {
		return nil, apperrors.WrapPersistence("reconciliation: load active match", err)
	}
	return match, nil
}

// History returns every match ever recorded for a feed item, newest first.
func (s *Service) History(ctx context.Context, feedItemID uuid.UUID) ([]models.ReconciliationMatch, error) {
	if _, err := fetchFeedItem(ctx, s.store, feedItemID); err != nil {
		return nil, err
	}
	history, err := s.store.MatchHistory(ctx, feedItemID)
	if err != nil {
		return nil, apperrors.WrapPersistence("reconciliation: load history", err)
	}
	return history, nil
}

// Statistics counts active matches by type for a company.
func (s *Service) Statistics(ctx context.Context, companyID uuid.UUID) (map[string]int64, error) {
	counts, err := s.store.CountActiveByType(ctx, companyID)
	if err != nil {
		return nil, apperrors.WrapPersistence("reconciliation: count matches", err)
	}
	return counts, nil
}

// ImportFeedItem records an externally reported statement line so it can be
// matched. The item is immutable once written.
func (s *Service) ImportFeedItem(ctx context.Context, item *models.BankFeedItem) (*models.BankFeedItem, error) {
	if item.CompanyID == uuid.Nil || item.BankAccountID == uuid.Nil {
		return nil, apperrors.NewValidation("bank_account_id", "company and bank account are required")
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now().UTC()
	if err := s.store.CreateFeedItem(ctx, item); err != nil {
		return nil, apperrors.WrapPersistence("reconciliation: create feed item", err)
	}
	return item, nil
}

func fetchFeedItem(ctx context.Context, store Store, feedItemID uuid.UUID) (*models.BankFeedItem, error) {
	item, err := store.GetFeedItem(ctx, feedItemID)
	if err != nil {
		return nil, apperrors.WrapPersistence("reconciliation: load feed item", err)
	}
	if item == nil {
		return nil, apperrors.NewValidation("feed_item_id", "feed item not found")
	}
	return item, nil
}

func deactivate(ctx context.Context, tx Store, match *models.ReconciliationMatch, at time.Time) error {
	rows, err := tx.DeactivateMatch(ctx, match.ID, at)
	if err != nil {
		return apperrors.WrapPersistence("reconciliation: deactivate match", err)
	}
	if rows == 0 {
		return &apperrors.ConflictError{
			Entity: "reconciliation match", ID: match.ID.String(),
			Reason: "superseded concurrently, re-fetch and retry",
		}
	}
	return nil
}
