package matching

import (
	"math"
	"strings"

	"github.com/WullieT22/Invoice-to-PO/internal/entity"
)

const (
	ReasonVendorExact   = "Exact vendor match"
	ReasonVendorPartial = "Partial vendor match"
	ReasonPOReference   = "PO number reference match"
	ReasonAmountExact   = "Exact amount match"
	ReasonAmountClose   = "Amount close match"
	ReasonPartNumber    = "Part number match"
	ReasonDescription   = "Description match"

	reasonSeparator = "; "
)

// Score rates one invoice against one PO line. The result is in [0,1] and the
// reasons follow evaluation order: vendor, PO reference, amount, part, description.
func Score(inv entity.InvoiceFields, c entity.CandidatePO, w Weights) (float64, []string) {
	var (
		total   float64
		reasons []string
	)
	add := func(v float64, reason string) {
		total += v
		reasons = append(reasons, reason)
	}

	invVendor := strings.ToLower(strings.TrimSpace(inv.VendorName))
	poVendor := strings.ToLower(strings.TrimSpace(c.VendorName))
	switch {
	case invVendor != "" && invVendor == poVendor:
		add(w.VendorExact, ReasonVendorExact)
	case invVendor != "" && poVendor != "" &&
		(strings.Contains(invVendor, poVendor) || strings.Contains(poVendor, invVendor)):
		add(w.VendorPartial, ReasonVendorPartial)
	}

	if ref := inv.POReference; ref != "" && c.PONumber != "" &&
		(strings.Contains(c.PONumber, ref) || strings.Contains(ref, c.PONumber)) {
		add(w.POReference, ReasonPOReference)
	}

	if inv.InvoiceAmount != nil && inv.InvoiceAmount.IsPositive() && c.LineAmount.IsPositive() {
		// Band edges are inclusive.
		diff := inv.InvoiceAmount.Sub(c.LineAmount).Abs()
		tolerance := w.AmountTolerance.Mul(c.LineAmount)
		switch {
		case diff.LessThanOrEqual(tolerance):
			add(w.AmountExact, ReasonAmountExact)
		case diff.LessThanOrEqual(w.AmountCloseFactor.Mul(tolerance)):
			add(w.AmountClose, ReasonAmountClose)
		}
	}

	if part := strings.ToLower(strings.TrimSpace(inv.PartNumber)); part != "" &&
		(part == strings.ToLower(strings.TrimSpace(c.PartNumber)) ||
			part == strings.ToLower(strings.TrimSpace(c.SupplierPart))) {
		add(w.PartNumber, ReasonPartNumber)
	}

	if desc := strings.ToLower(strings.TrimSpace(inv.Description)); desc != "" &&
		strings.Contains(strings.ToLower(c.LineDescription), desc) {
		add(w.Description, ReasonDescription)
	}

	return round4(math.Min(total, 1.0)), reasons
}

// JoinReasons renders scorer reasons for display.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, reasonSeparator)
}

// round4 keeps sums like 0.15+0.40 stable for comparison.
func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
