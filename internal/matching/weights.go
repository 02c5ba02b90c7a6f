package matching

import "github.com/shopspring/decimal"

// Weights are the sub-score contributions of the heuristic scorer and the
// amount tolerance it applies. Values are fractions of 1.0.
type Weights struct {
	VendorExact   float64
	VendorPartial float64
	POReference   float64
	AmountExact   float64
	AmountClose   float64
	PartNumber    float64
	Description   float64

	// AmountTolerance is the exact-match band as a fraction of the PO line amount.
	AmountTolerance decimal.Decimal
	// AmountCloseFactor widens the tolerance for a close match.
	AmountCloseFactor decimal.Decimal
}

// DefaultWeights returns the production scoring weights.
func DefaultWeights() Weights {
	return Weights{
		VendorExact:       0.30,
		VendorPartial:     0.15,
		POReference:       0.40,
		AmountExact:       0.30,
		AmountClose:       0.15,
		PartNumber:        0.25,
		Description:       0.10,
		AmountTolerance:   decimal.RequireFromString("0.05"),
		AmountCloseFactor: decimal.NewFromInt(2),
	}
}

func (w Weights) isZero() bool {
	return w.VendorExact == 0 && w.VendorPartial == 0 && w.POReference == 0 &&
		w.AmountExact == 0 && w.AmountClose == 0 && w.PartNumber == 0 && w.Description == 0 &&
		w.AmountTolerance.IsZero() && w.AmountCloseFactor.IsZero()
}
