package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

func TestBuildValidationPrompt(t *testing.T) {
	date := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	inv := entity.InvoiceFields{
		InvoiceNumber: "INV-9",
		VendorName:    "ACME",
		InvoiceAmount: amount("12.5"),
		InvoiceDate:   &date,
		InvoiceType:   constants.InvoiceTypeCreditMemo,
	}
	p := BuildValidationPrompt(inv, entity.CandidatePO{PONumber: "PO-1", POLine: 3, LineAmount: dec("12.5")})

	assert.Contains(t, p, "Number: INV-9")
	assert.Contains(t, p, "Amount: 12.50")
	assert.Contains(t, p, "Date: 2024-03-09")
	assert.Contains(t, p, "Type: CREDIT_MEMO")
	assert.Contains(t, p, "Line: 3")
}

func TestBuildMatchPrompt_InvoiceDate(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	p := BuildMatchPrompt(entity.InvoiceFields{InvoiceDate: &date}, nil, 3, 10)
	assert.Contains(t, p, `"invoice_date": "2024-01-15"`)
}

func TestBuildMatchPrompt_AmountsAreNumbers(t *testing.T) {
	p := BuildMatchPrompt(
		entity.InvoiceFields{InvoiceAmount: amount("1000.5")},
		[]entity.CandidatePO{{PONumber: "PO-1", POLine: 1, LineAmount: dec("1000"), RemainingAmount: dec("400")}},
		3, 10)
	assert.Contains(t, p, `"invoice_amount": 1000.50`)
	assert.Contains(t, p, `"line_amount": 1000.00`)
	assert.Contains(t, p, `"remaining_amount": 400.00`)
}
