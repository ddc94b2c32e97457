package directcredit

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"payment-run-settlement-backend/internal/apperrors"
	"payment-run-settlement-backend/internal/money"
)

// encodeGeneric writes the header-free delimited format: one row per settled
// item as payee bank reference, payee name, amount with two decimals,
// reference. Rows keep allocation order; the output is byte-identical for
// the same run.
func encodeGeneric(runDate time.Time, runID string, items []SettledItem, settings Settings) (*Result, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	var warnings []Warning
	encoded := 0
	for i, item := range items {
		if strings.TrimSpace(item.AccountNumber) == "" {
			warnings = append(warnings, Warning{
				Row:     i,
				Code:    WarnMissingAccountNumber,
				Message: fmt.Sprintf("row %d (%s): payee account number is missing, row skipped", i, item.PayeeName),
			})
			continue
		}
		record := []string{
			bankReference(item),
			item.PayeeName,
			money.Format2dp(item.Amount),
			item.Reference,
		}
		if err := writer.Write(record); err != nil {
			return nil, apperrors.WrapPersistence("directcredit: write row", err)
		}
		encoded++
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, apperrors.WrapPersistence("directcredit: flush", err)
	}
	if encoded == 0 {
		return nil, apperrors.NewValidation("items", "no item has valid banking details")
	}

	return &Result{
		Filename:    fmt.Sprintf("payment-run-%s-%s.csv", runDate.Format("20060102"), shortID(runID)),
		ContentType: "text/csv",
		Content:     buf.Bytes(),
		Warnings:    warnings,
	}, nil
}

func bankReference(item SettledItem) string {
	bsb := strings.TrimSpace(item.BSB)
	if bsb == "" {
		return item.AccountNumber
	}
	return bsb + "-" + item.AccountNumber
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
