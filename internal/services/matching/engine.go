// Package matching ranks ledger transactions as candidates for a bank feed
// item. Candidates are restricted to the feed account's currency and a
// bounded date window; ranking is deterministic so a retried auto-match
// always picks the same transaction.
package matching

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"payment-run-settlement-backend/internal/models"
)

// WindowDays bounds how far a candidate's date may sit from the feed item's.
const WindowDays = 7

// Candidate is a scored ledger transaction.
type Candidate struct {
	Transaction  models.LedgerTransaction
	AmountDelta  decimal.Decimal
	DateDiffDays float64
	NameScore    float64
	Score        float64
}

// ExactAmount reports whether the candidate's total equals the feed amount.
func (c Candidate) ExactAmount() bool {
	return c.AmountDelta.IsZero()
}

// Rank filters and scores candidates for a feed item. The returned slice is
// ordered best-first with a total tie-break: smallest amount delta, then
// closest date, then highest description similarity, then lowest ID.
func Rank(item *models.BankFeedItem, currency string, transactions []models.LedgerTransaction) []Candidate {
	feedAmount := item.Amount.Abs()

	var candidates []Candidate
	for _, txn := range transactions {
		if txn.Currency != currency {
			continue
		}
		days := math.Abs(txn.TransactionDate.Sub(item.FeedDate).Hours() / 24)
		if days > WindowDays {
			continue
		}

		delta := txn.Total.Sub(feedAmount).Abs()
		nameScore := nameSimilarity(item.Description, txn.Description)

		candidate := Candidate{
			Transaction:  txn,
			AmountDelta:  delta,
			DateDiffDays: days,
			NameScore:    nameScore,
		}
		candidate.Score = 0.5*amountScore(delta, feedAmount) +
			0.3*dateScore(days) +
			0.2*nameScore
		candidates = append(candidates, candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.AmountDelta.Equal(b.AmountDelta) {
			return a.AmountDelta.LessThan(b.AmountDelta)
		}
		if a.DateDiffDays != b.DateDiffDays {
			return a.DateDiffDays < b.DateDiffDays
		}
		if a.NameScore != b.NameScore {
			return a.NameScore > b.NameScore
		}
		return a.Transaction.ID.String() < b.Transaction.ID.String()
	})
	return candidates
}

func amountScore(delta, feedAmount decimal.Decimal) float64 {
	if delta.IsZero() {
		return 100
	}
	if feedAmount.IsZero() {
		return 0
	}
	ratio, _ := delta.Div(feedAmount).Float64()
	score := (1 - ratio) * 100
	if score < 0 {
		return 0
	}
	return score
}

func dateScore(days float64) float64 {
	switch {
	case days <= 1:
		return 100
	case days <= 3:
		return 80
	case days <= 5:
		return 60
	default:
		return 40
	}
}

// nameSimilarity scores how well the feed description covers the
// transaction's description tokens, using per-token Levenshtein distance.
func nameSimilarity(feedDesc, txnDesc string) float64 {
	feedTokens := strings.Fields(normalize(feedDesc))
	txnTokens := strings.Fields(normalize(txnDesc))
	if len(txnTokens) == 0 {
		return 0
	}

	total := 0.0
	for _, txnTok := range txnTokens {
		best := 0.0
		for _, feedTok := range feedTokens {
			dist := levenshtein(txnTok, feedTok)
			maxLen := math.Max(float64(len(txnTok)), float64(len(feedTok)))
			sim := 1 - float64(dist)/maxLen
			if sim > best {
				best = sim
			}
		}
		total += best
	}
	return (total / float64(len(txnTokens))) * 100
}

func normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.TrimSpace(s)
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	dp := make([][]int, len(a)+1)
	for i := range dp {
		dp[i] = make([]int, len(b)+1)
	}
	for i := 0; i <= len(a); i++ {
		dp[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		dp[0][j] = j
	}
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			dp[i][j] = min3(
				dp[i-1][j]+1,
				dp[i][j-1]+1,
				dp[i-1][j-1]+cost,
			)
		}
	}
	return dp[len(a)][len(b)]
}

func min3(a, b, c int) int {
	if a < b && a < c {
		return a
	}
	if b < c {
		return b
	}
	return c
}
