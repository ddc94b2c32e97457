package directcredit

import (
	"fmt"
	"strings"
	"time"

	"payment-run-settlement-backend/internal/apperrors"
	"payment-run-settlement-backend/internal/money"
)

// ABA direct entry: three record types, each exactly 120 bytes. The layouts
// below are field tables consumed by the schema renderer; a bank wanting a
// different layout gets its own tables and registry entry.
const (
	abaRecordWidth = 120
	abaAmountWidth = 10
)

var abaHeader = RecordSchema{
	Name: "aba-header",
	Fields: []FieldSpec{
		{Name: "record_type", Width: 1, Pad: ' ', Justify: JustifyLeft},
		{Name: "filler_1", Width: 17, Pad: ' ', Justify: JustifyLeft},
		{Name: "reel_sequence", Width: 2, Pad: '0', Justify: JustifyRight},
		{Name: "institution", Width: 3, Pad: ' ', Justify: JustifyLeft},
		{Name: "filler_2", Width: 7, Pad: ' ', Justify: JustifyLeft},
		{Name: "user_name", Width: 26, Pad: ' ', Justify: JustifyLeft},
		{Name: "user_id", Width: 6, Pad: '0', Justify: JustifyRight},
		{Name: "description", Width: 12, Pad: ' ', Justify: JustifyLeft},
		{Name: "processing_date", Width: 6, Pad: ' ', Justify: JustifyLeft},
		{Name: "filler_3", Width: 40, Pad: ' ', Justify: JustifyLeft},
	},
}

var abaDetail = RecordSchema{
	Name: "aba-detail",
	Fields: []FieldSpec{
		{Name: "record_type", Width: 1, Pad: ' ', Justify: JustifyLeft},
		{Name: "bsb", Width: 7, Pad: ' ', Justify: JustifyLeft},
		{Name: "account_number", Width: 9, Pad: ' ', Justify: JustifyRight},
		{Name: "indicator", Width: 1, Pad: ' ', Justify: JustifyLeft},
		{Name: "transaction_code", Width: 2, Pad: ' ', Justify: JustifyLeft},
		{Name: "amount", Width: 10, Pad: '0', Justify: JustifyRight},
		{Name: "account_title", Width: 32, Pad: ' ', Justify: JustifyLeft},
		{Name: "lodgement_reference", Width: 18, Pad: ' ', Justify: JustifyLeft},
		{Name: "trace_bsb", Width: 7, Pad: ' ', Justify: JustifyLeft},
		{Name: "trace_account", Width: 9, Pad: ' ', Justify: JustifyRight},
		{Name: "remitter_name", Width: 16, Pad: ' ', Justify: JustifyLeft},
		{Name: "withholding_tax", Width: 8, Pad: '0', Justify: JustifyRight},
	},
}

var abaTrailer = RecordSchema{
	Name: "aba-trailer",
	Fields: []FieldSpec{
		{Name: "record_type", Width: 1, Pad: ' ', Justify: JustifyLeft},
		{Name: "bsb_filler", Width: 7, Pad: ' ', Justify: JustifyLeft},
		{Name: "filler_1", Width: 12, Pad: ' ', Justify: JustifyLeft},
		{Name: "net_total", Width: 10, Pad: '0', Justify: JustifyRight},
		{Name: "credit_total", Width: 10, Pad: '0', Justify: JustifyRight},
		{Name: "debit_total", Width: 10, Pad: '0', Justify: JustifyRight},
		{Name: "filler_2", Width: 24, Pad: ' ', Justify: JustifyLeft},
		{Name: "record_count", Width: 6, Pad: '0', Justify: JustifyRight},
		{Name: "filler_3", Width: 40, Pad: ' ', Justify: JustifyLeft},
	},
}

// creditTransactionCode is the direct entry code for a general credit.
const creditTransactionCode = "50"

func init() {
	for _, schema := range []RecordSchema{abaHeader, abaDetail, abaTrailer} {
		if err := schema.validate(abaRecordWidth); err != nil {
			panic(err)
		}
	}
}

// encodeABA renders header, one detail per valid item, and a trailer whose
// control totals cover exactly the details that were emitted.
func encodeABA(runDate time.Time, runID string, items []SettledItem, settings Settings) (*Result, error) {
	var lines []string
	var warnings []Warning

	header, _ := abaHeader.Render(map[string]string{
		"record_type":     "0",
		"reel_sequence":   "1",
		"institution":     settings.InstitutionCode,
		"user_name":       settings.RemitterName,
		"user_id":         settings.DirectEntryID,
		"description":     "PAYMENTS",
		"processing_date": runDate.Format("020106"),
	})
	lines = append(lines, header)

	var totalCents int64
	count := 0
	for i, item := range items {
		if strings.TrimSpace(item.AccountNumber) == "" {
			warnings = append(warnings, Warning{
				Row:     i,
				Code:    WarnMissingAccountNumber,
				Message: fmt.Sprintf("row %d (%s): payee account number is missing, row skipped", i, item.PayeeName),
			})
			continue
		}
		cents, err := money.MinorUnits(item.Amount)
		if err != nil {
			warnings = append(warnings, Warning{
				Row:     i,
				Code:    "invalid_amount",
				Message: fmt.Sprintf("row %d (%s): %v, row skipped", i, item.PayeeName, err),
			})
			continue
		}
		// An amount wider than its slot would render a different number of
		// dollars; that row must be skipped, never truncated.
		amount := fmt.Sprintf("%d", cents)
		if len(amount) > abaAmountWidth {
			warnings = append(warnings, Warning{
				Row:     i,
				Code:    WarnAmountOverflow,
				Message: fmt.Sprintf("row %d (%s): amount %s exceeds the field width, row skipped", i, item.PayeeName, money.Format2dp(item.Amount)),
			})
			continue
		}

		detail, truncated := abaDetail.Render(map[string]string{
			"record_type":         "1",
			"bsb":                 item.BSB,
			"account_number":      item.AccountNumber,
			"transaction_code":    creditTransactionCode,
			"amount":              amount,
			"account_title":       item.PayeeName,
			"lodgement_reference": item.Reference,
			"trace_bsb":           settings.BSB,
			"trace_account":       settings.AccountNumber,
			"remitter_name":       settings.RemitterName,
			"withholding_tax":     "0",
		})
		lines = append(lines, detail)
		for _, field := range truncated {
			code := WarnReferenceTruncated
			if field == "account_title" || field == "remitter_name" {
				code = WarnNameTruncated
			}
			warnings = append(warnings, Warning{
				Row:     i,
				Code:    code,
				Message: fmt.Sprintf("row %d (%s): field %s truncated to fit", i, item.PayeeName, field),
			})
		}
		totalCents += cents
		count++
	}

	if count == 0 {
		return nil, apperrors.NewValidation("items", "no item has valid banking details")
	}
	total := fmt.Sprintf("%d", totalCents)
	if len(total) > abaAmountWidth {
		return nil, apperrors.NewValidation("items", "control total exceeds the trailer amount width")
	}

	// Credits only, so net == credit total and debit total is zero.
	trailer, _ := abaTrailer.Render(map[string]string{
		"record_type":  "7",
		"bsb_filler":   "999-999",
		"net_total":    total,
		"credit_total": total,
		"debit_total":  "0",
		"record_count": fmt.Sprintf("%d", count),
	})
	lines = append(lines, trailer)

	return &Result{
		Filename:    fmt.Sprintf("payment-run-%s-%s.aba", runDate.Format("20060102"), shortID(runID)),
		ContentType: "text/plain",
		Content:     []byte(strings.Join(lines, "\r\n") + "\r\n"),
		Warnings:    warnings,
	}, nil
}
