package matching

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

const matchInstructions = `Match the invoice below to the best purchase order line.

Consider, in order of importance:
- PO number referenced on the invoice
- vendor name or vendor id
- amount (within 5% of the PO line amount)
- part number or supplier part
- line description
For credit or debit memos, look for the original invoice amount.

Only choose po_number values that appear in the candidate list.
Reply with JSON only, in exactly this shape:
{
  "best_match": {"po_number": "PO123", "po_line": 1, "match_score": 0.95},
  "alternative_matches": [{"po_number": "PO456", "po_line": 2, "match_score": 0.6}],
  "reasoning": "short explanation"
}
match_score must be a number between 0 and 1.`

type promptInvoice struct {
	InvoiceNumber string            `json:"invoice_number,omitempty"`
	VendorName    string            `json:"vendor_name,omitempty"`
	VendorID      string            `json:"vendor_id,omitempty"`
	InvoiceAmount json.Number       `json:"invoice_amount,omitempty"`
	InvoiceDate   string            `json:"invoice_date,omitempty"`
	InvoiceType   string            `json:"invoice_type,omitempty"`
	POReference   string            `json:"po_reference,omitempty"`
	PartNumber    string            `json:"part_number,omitempty"`
	Description   string            `json:"description,omitempty"`
	LineItems     []entity.LineItem `json:"line_items,omitempty"`
}

type promptCandidate struct {
	PONumber        string      `json:"po_number"`
	POLine          int         `json:"po_line"`
	VendorName      string      `json:"vendor_name,omitempty"`
	VendorID        string      `json:"vendor_id,omitempty"`
	PartNumber      string      `json:"part_number,omitempty"`
	SupplierPart    string      `json:"supplier_part,omitempty"`
	LineDescription string      `json:"line_description,omitempty"`
	LineAmount      json.Number `json:"line_amount"`
	RemainingAmount json.Number `json:"remaining_amount"`
}

func invoiceContext(inv entity.InvoiceFields, maxLineItems int) promptInvoice {
	p := promptInvoice{
		InvoiceNumber: inv.InvoiceNumber,
		VendorName:    inv.VendorName,
		VendorID:      inv.VendorID,
		InvoiceType:   string(inv.InvoiceType),
		POReference:   inv.POReference,
		PartNumber:    inv.PartNumber,
		Description:   inv.Description,
		LineItems:     inv.LineItems[:min(len(inv.LineItems), maxLineItems)],
	}
	if inv.InvoiceAmount != nil {
		p.InvoiceAmount = money(*inv.InvoiceAmount)
	}
	if inv.InvoiceDate != nil {
		p.InvoiceDate = inv.InvoiceDate.Format("2006-01-02")
	}
	return p
}

func candidateContext(c entity.CandidatePO) promptCandidate {
	return promptCandidate{
		PONumber:        c.PONumber,
		POLine:          c.POLine,
		VendorName:      c.VendorName,
		VendorID:        c.VendorID,
		PartNumber:      c.PartNumber,
		SupplierPart:    c.SupplierPart,
		LineDescription: c.LineDescription,
		LineAmount:      money(c.LineAmount),
		RemainingAmount: money(c.RemainingAmount),
	}
}

// money renders an amount as a bare JSON number with cents.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// BuildMatchPrompt renders the oracle prompt. Only the first maxLineItems line
// items and the first maxCandidates candidates are included.
func BuildMatchPrompt(inv entity.InvoiceFields, cands []entity.CandidatePO, maxLineItems, maxCandidates int) string {
	pcs := make([]promptCandidate, 0, min(len(cands), maxCandidates))
	for _, c := range cands[:min(len(cands), maxCandidates)] {
		pcs = append(pcs, candidateContext(c))
	}

	var b strings.Builder
	b.WriteString(matchInstructions)
	b.WriteString("\n\nINVOICE:\n")
	b.WriteString(mustJSON(invoiceContext(inv, maxLineItems)))
	b.WriteString("\n\nCANDIDATE PO LINES:\n")
	b.WriteString(mustJSON(pcs))
	return b.String()
}

// BuildValidationPrompt asks the oracle for a second opinion on one pairing.
func BuildValidationPrompt(inv entity.InvoiceFields, c entity.CandidatePO) string {
	amount := "unknown"
	if inv.InvoiceAmount != nil {
		amount = inv.InvoiceAmount.StringFixed(2)
	}
	date := "unknown"
	if inv.InvoiceDate != nil {
		date = inv.InvoiceDate.Format("2006-01-02")
	}

	var b strings.Builder
	b.WriteString("Validate whether this invoice matches this purchase order line.\n\n")
	fmt.Fprintf(&b, "INVOICE:\n- Number: %s\n- Vendor: %s\n- Amount: %s\n- Date: %s\n- Type: %s\n\n",
		inv.InvoiceNumber, inv.VendorName, amount, date, inv.InvoiceType)
	fmt.Fprintf(&b, "PURCHASE ORDER:\n- Number: %s\n- Line: %d\n- Vendor: %s\n- Line Amount: %s\n- Description: %s\n\n",
		c.PONumber, c.POLine, c.VendorName, c.LineAmount.StringFixed(2), c.LineDescription)
	b.WriteString(`Reply with JSON only:
{"is_valid": true, "confidence": 0-100, "discrepancies": ["..."], "recommendation": "approve|review|reject"}`)
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
