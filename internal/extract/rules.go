package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

const MethodRules = "rules"

var (
	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\binvoice\s*(?:number\b|num\b|no\b\.?|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]*)`),
		regexp.MustCompile(`(?i)\binv\s*(?:number\b|num\b|no\b\.?|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]*)`),
	}

	labelledAmountPattern = regexp.MustCompile(`(?i)\b(?:total|amount|balance)(?:\s+(?:amount|due))*\s*[:=]?\s*(?:USD\s*)?\$?\s*([\d,]+(?:\.\d+)?)`)
	dollarAmountPattern   = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)`)

	labelledDatePattern = regexp.MustCompile(`(?i)\b(?:invoice|bill)\s+(?:date|issued)\s*[:]?\s*(\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2})`)
	slashDatePattern    = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)
	isoDatePattern      = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	vendorSameLinePattern = regexp.MustCompile(`(?im)^\s*(?:bill\s+from|from|vendor|supplier)\s*(?:name)?\s*[:\-]\s*([A-Za-z][A-Za-z0-9 &.,'\-]*?)\s*$`)
	vendorNextLinePattern = regexp.MustCompile(`(?im)^\s*(?:bill\s+from|from|vendor|supplier)\s*:?\s*\n\s*([A-Za-z][A-Za-z0-9 &.,'\-]*?)\s*$`)
	vendorIDPattern       = regexp.MustCompile(`(?i)\b(?:vendor|supplier)\s*(?:id\b|no\b\.?|number\b|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-]*)`)

	poPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:p\.?o\.?|purchase\s+order)\s*(?:number\b|num\b|no\b\.?|ref(?:erence)?\b)?\s*[:#]+\s*([A-Z0-9][A-Z0-9\-]*)`),
		regexp.MustCompile(`\b(PO[-\s]?\d[A-Za-z0-9\-]*)`),
		regexp.MustCompile(`(?i)\bp\.o\.\s*([A-Z0-9][A-Z0-9\-]*)`),
	}

	partNumberPattern  = regexp.MustCompile(`(?i)\b(?:part|item|sku)\s*(?:number\b|no\b\.?|#)\s*[:#]?\s*([A-Z0-9][A-Z0-9\-.]*)`)
	descriptionPattern = regexp.MustCompile(`(?im)^\s*description\s*:\s*(.+?)\s*$`)
)

var dateLayouts = []string{"2006-01-02", "1/2/2006", "01/02/2006", "1/2/06", "01/02/06"}

// RuleExtractor extracts invoice fields with regular expressions.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

func (RuleExtractor) ExtractFields(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	f := Fields(text)

	var warnings []string
	if f.InvoiceNumber == "" {
		warnings = append(warnings, "invoice_number not found")
	}
	if f.VendorName == "" {
		warnings = append(warnings, "vendor_name not found")
	}
	if f.InvoiceAmount == nil {
		warnings = append(warnings, "invoice_amount not found")
	}
	if f.POReference == "" {
		warnings = append(warnings, "po_reference not found")
	}
	return Result{Fields: f, Method: MethodRules, Duration: time.Since(start), Warnings: warnings}, nil
}

// Fields extracts what it can from plain invoice text. Missing fields stay zero.
func Fields(text string) entity.InvoiceFields {
	f := entity.InvoiceFields{
		InvoiceType: DetectInvoiceType(text),
	}
	for _, re := range invoiceNumberPatterns {
		if v := firstGroup(re, text); v != "" {
			f.InvoiceNumber = v
			break
		}
	}
	f.VendorName = firstGroup(vendorSameLinePattern, text)
	if f.VendorName == "" {
		f.VendorName = firstGroup(vendorNextLinePattern, text)
	}
	f.VendorName = strings.TrimRight(f.VendorName, " ,.")
	f.VendorID = firstGroup(vendorIDPattern, text)
	f.InvoiceAmount = invoiceAmount(text)
	f.InvoiceDate = invoiceDate(text)
	for _, re := range poPatterns {
		if v := firstGroup(re, text); v != "" {
			f.POReference = strings.TrimSpace(v)
			break
		}
	}
	f.PartNumber = strings.TrimRight(firstGroup(partNumberPattern, text), ".")
	f.Description = firstGroup(descriptionPattern, text)
	f.LineItems = csvLineItems(text)
	return f
}

// DetectInvoiceType classifies credit and debit memos or notes. Anything else is standard.
func DetectInvoiceType(text string) constants.InvoiceType {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "credit") && strings.Contains(lower, "memo"):
		return constants.InvoiceTypeCreditMemo
	case strings.Contains(lower, "debit") && strings.Contains(lower, "memo"):
		return constants.InvoiceTypeDebitMemo
	case strings.Contains(lower, "credit note"):
		return constants.InvoiceTypeCreditMemo
	case strings.Contains(lower, "debit note"):
		return constants.InvoiceTypeDebitMemo
	default:
		return constants.InvoiceTypeStandard
	}
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// invoiceAmount prefers the first labelled total and otherwise takes the largest dollar figure.
func invoiceAmount(text string) *decimal.Decimal {
	for _, m := range labelledAmountPattern.FindAllStringSubmatch(text, -1) {
		if v, ok := parseAmount(m[1]); ok {
			return &v
		}
	}

	var best *decimal.Decimal
	for _, m := range dollarAmountPattern.FindAllStringSubmatch(text, -1) {
		if v, ok := parseAmount(m[1]); ok && (best == nil || v.GreaterThan(*best)) {
			best = &v
		}
	}
	return best
}

func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "." {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

func invoiceDate(text string) *time.Time {
	for _, re := range []*regexp.Regexp{labelledDatePattern, slashDatePattern, isoDatePattern} {
		if v := firstGroup(re, text); v != "" {
			if t, ok := parseDate(v); ok {
				return &t
			}
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// csvLineItems reads rows shaped description,quantity,...,amount. Other rows are skipped.
func csvLineItems(text string) []entity.LineItem {
	if !strings.Contains(text, ",") {
		return nil
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var items []entity.LineItem
	for {
		row, err := r.Read()
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			break
		}
		if len(row) < 3 {
			continue
		}
		qty, okQty := parseAmount(strings.TrimSpace(row[1]))
		amt, okAmt := parseAmount(strings.TrimPrefix(strings.TrimSpace(row[len(row)-1]), "$"))
		desc := strings.TrimSpace(row[0])
		if !okQty || !okAmt || desc == "" {
			continue
		}
		items = append(items, entity.LineItem{Description: desc, Quantity: qty, Amount: amt})
	}
	return items
}
