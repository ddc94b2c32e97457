// Package directcredit turns a completed payment run's settled items into a
// bank-submission byte stream. Encoding is a pure function of the items and
// the account's bank-file settings, so re-downloading a file always yields
// identical bytes.
package directcredit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"payment-run-settlement-backend/internal/apperrors"
)

// Supported formats.
const (
	FormatGeneric = "generic"
	FormatABA     = "aba"
)

// SettledItem is one settled allocation flattened with its payee's banking
// details. Items arrive in allocation insertion order and are encoded in
// that order.
type SettledItem struct {
	PayeeName     string
	BSB           string
	AccountNumber string
	Amount        decimal.Decimal
	Reference     string
}

// Settings are the paying account's bank-file settings.
type Settings struct {
	BSB             string
	AccountNumber   string
	InstitutionCode string
	RemitterName    string
	DirectEntryID   string
}

// Warning is a non-fatal per-row encoding issue, e.g. a truncated name or a
// skipped row. Warnings ride alongside a successful result.
type Warning struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarnNameTruncated        = "name_truncated"
	WarnReferenceTruncated   = "reference_truncated"
	WarnMissingAccountNumber = "missing_account_number"
	WarnAmountOverflow       = "amount_overflow"
)

// Result is an encoded file ready for download.
type Result struct {
	Filename    string
	ContentType string
	Content     []byte
	Warnings    []Warning
}

type encodeFunc func(runDate time.Time, runID string, items []SettledItem, settings Settings) (*Result, error)

// formats is the registry; adding a bank means adding an entry here backed
// by its own field tables.
var formats = map[string]encodeFunc{
	FormatGeneric: encodeGeneric,
	FormatABA:     encodeABA,
}

// Encode renders the settled items of a completed run into the named
// format. Rows that cannot be encoded are skipped with a warning; only when
// no valid rows remain does the whole encode fail.
func Encode(runDate time.Time, runID string, items []SettledItem, settings Settings, format string) (*Result, error) {
	fn, ok := formats[format]
	if !ok {
		return nil, apperrors.NewValidation("format", fmt.Sprintf("unknown file format %q", format))
	}
	if len(items) == 0 {
		return nil, apperrors.NewValidation("items", "run has no settled items")
	}
	return fn(runDate, runID, items, settings)
}

// Formats lists the registered format names.
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	return names
}
