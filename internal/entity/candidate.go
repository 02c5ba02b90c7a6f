package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CandidatePO is one open purchase-order line eligible for matching.
type CandidatePO struct {
	PONumber        string          `json:"po_number" validate:"required"`
	POLine          int             `json:"po_line" validate:"gte=0"`
	VendorName      string          `json:"vendor_name,omitempty"`
	VendorID        string          `json:"vendor_id,omitempty"`
	PartNumber      string          `json:"part_number,omitempty"`
	SupplierPart    string          `json:"supplier_part,omitempty"`
	LineDescription string          `json:"line_description,omitempty"`
	LineAmount      decimal.Decimal `json:"line_amount" validate:"gte=0"`
	ReceivedAmount  decimal.Decimal `json:"received_amount" validate:"gte=0"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
}

// CandidateKey identifies a PO line.
type CandidateKey struct {
	PONumber string `json:"po_number"`
	POLine   int    `json:"po_line"`
}

func (k CandidateKey) String() string {
	return fmt.Sprintf("%s/%d", k.PONumber, k.POLine)
}

func (c CandidatePO) Key() CandidateKey {
	return CandidateKey{PONumber: c.PONumber, POLine: c.POLine}
}
