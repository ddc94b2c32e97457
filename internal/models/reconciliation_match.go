package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Match types. Only MatchTypeSplit may share one ledger transaction across
// several feed items.
const (
	MatchTypeExactAmount = "exact_amount"
	MatchTypeAuto        = "auto"
	MatchTypeManual      = "manual"
	MatchTypeRule        = "rule"
	MatchTypeSplit       = "split"
)

// ReconciliationMatch links a bank feed item to a ledger transaction. The
// table is an append-only audit log: superseded rows are deactivated, never
// deleted, and at most one row per feed item has Active set. The partial
// unique index on FeedItemID backs that invariant at the database so
// concurrent writers cannot both commit an active row.
type ReconciliationMatch struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"company_id"`
	FeedItemID    uuid.UUID      `gorm:"type:uuid;index;not null;uniqueIndex:uniq_active_match_per_feed_item,where:active" json:"feed_item_id"`
	TransactionID uuid.UUID      `gorm:"type:uuid;index;not null" json:"transaction_id"`
	MatchType     string         `gorm:"index" json:"match_type"`
	Active        bool           `gorm:"index" json:"active"`
	MatchedBy     string         `json:"matched_by"`
	Details       datatypes.JSON `json:"details"`
	MatchedAt     time.Time      `json:"matched_at"`
	SupersededAt  *time.Time     `json:"superseded_at"`
}
