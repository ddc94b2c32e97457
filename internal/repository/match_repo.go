package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payment-run-settlement-backend/internal/models"
	"payment-run-settlement-backend/internal/services/reconciliation"
)

// MatchStore implements reconciliation.Store. The match table is
// append-only; the only update ever issued is the conditional deactivation.
type MatchStore struct {
	db       *gorm.DB
	accounts *BankAccountRepository
	ledgers  *LedgerRepository
}

func NewMatchStore(db *gorm.DB) *MatchStore {
	return &MatchStore{
		db:       db,
		accounts: NewBankAccountRepository(db),
		ledgers:  NewLedgerRepository(db),
	}
}

var _ reconciliation.Store = (*MatchStore)(nil)

func (s *MatchStore) Transact(ctx context.Context, fn func(tx reconciliation.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewMatchStore(tx))
	})
}

func (s *MatchStore) GetFeedItem(ctx context.Context, id uuid.UUID) (*models.BankFeedItem, error) {
	var item models.BankFeedItem
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetFeedItemForUpdate loads the item under SELECT ... FOR UPDATE, holding
// the lock until the surrounding transaction commits.
func (s *MatchStore) GetFeedItemForUpdate(ctx context.Context, id uuid.UUID) (*models.BankFeedItem, error) {
	var item models.BankFeedItem
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *MatchStore) CreateFeedItem(ctx context.Context, item *models.BankFeedItem) error {
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *MatchStore) GetBankAccount(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	return s.accounts.GetBankAccount(ctx, id)
}

func (s *MatchStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	return s.ledgers.GetTransaction(ctx, id)
}

func (s *MatchStore) CandidateTransactions(ctx context.Context, companyID uuid.UUID, currency string, from, to time.Time) ([]models.LedgerTransaction, error) {
	return s.ledgers.CandidateTransactions(ctx, companyID, currency, from, to)
}

// ActiveMatch is the "current truth" lookup: at most one row per feed item
// has active set, so this reads a single row.
func (s *MatchStore) ActiveMatch(ctx context.Context, feedItemID uuid.UUID) (*models.ReconciliationMatch, error) {
	var match models.ReconciliationMatch
	err := s.db.WithContext(ctx).
		First(&match, "feed_item_id = ? AND active = ?", feedItemID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *MatchStore) ActiveMatchForTransaction(ctx context.Context, transactionID uuid.UUID) (*models.ReconciliationMatch, error) {
	var match models.ReconciliationMatch
	err := s.db.WithContext(ctx).
		First(&match, "transaction_id = ? AND active = ?", transactionID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// DeactivateMatch only touches a row that is still active, so a concurrent
// superseder cannot be overwritten silently.
func (s *MatchStore) DeactivateMatch(ctx context.Context, matchID uuid.UUID, at time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.ReconciliationMatch{}).
		Where("id = ? AND active = ?", matchID, true).
		Updates(map[string]interface{}{
			"active":        false,
			"superseded_at": at,
		})
	return result.RowsAffected, result.Error
}

func (s *MatchStore) CreateMatch(ctx context.Context, match *models.ReconciliationMatch) error {
	return s.db.WithContext(ctx).Create(match).Error
}

func (s *MatchStore) MatchHistory(ctx context.Context, feedItemID uuid.UUID) ([]models.ReconciliationMatch, error) {
	var matches []models.ReconciliationMatch
	err := s.db.WithContext(ctx).
		Where("feed_item_id = ?", feedItemID).
		Order("matched_at DESC").
		Find(&matches).Error
	return matches, err
}

func (s *MatchStore) CountActiveByType(ctx context.Context, companyID uuid.UUID) (map[string]int64, error) {
	type row struct {
		MatchType string
		Count     int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&models.ReconciliationMatch{}).
		Select("match_type, COUNT(*) as count").
		Where("company_id = ? AND active = ?", companyID, true).
		Group("match_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.MatchType] = r.Count
	}
	return counts, nil
}
