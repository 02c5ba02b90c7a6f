package server

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/async"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
	"github.com/WullieT22/Invoice-to-PO/internal/reconcile"
	"github.com/WullieT22/Invoice-to-PO/internal/utils"
)

// InvoiceFieldsMessage is the wire form of entity.InvoiceFields. Dates are YYYY-MM-DD.
type InvoiceFieldsMessage struct {
	InvoiceNumber string            `json:"invoice_number,omitempty"`
	VendorName    string            `json:"vendor_name,omitempty"`
	VendorID      string            `json:"vendor_id,omitempty"`
	InvoiceAmount *decimal.Decimal  `json:"invoice_amount,omitempty"`
	InvoiceDate   string            `json:"invoice_date,omitempty"`
	InvoiceType   string            `json:"invoice_type,omitempty"`
	POReference   string            `json:"po_reference,omitempty"`
	PartNumber    string            `json:"part_number,omitempty"`
	Description   string            `json:"description,omitempty"`
	LineItems     []entity.LineItem `json:"line_items,omitempty"`
}

func (m InvoiceFieldsMessage) toEntity() (entity.InvoiceFields, error) {
	date, err := utils.ParseOptionalDate("invoice_date", m.InvoiceDate)
	if err != nil {
		return entity.InvoiceFields{}, err
	}
	return entity.InvoiceFields{
		InvoiceNumber: strings.TrimSpace(m.InvoiceNumber),
		VendorName:    strings.TrimSpace(m.VendorName),
		VendorID:      strings.TrimSpace(m.VendorID),
		InvoiceAmount: m.InvoiceAmount,
		InvoiceDate:   date,
		InvoiceType:   constants.InvoiceType(strings.ToUpper(strings.TrimSpace(m.InvoiceType))),
		POReference:   strings.TrimSpace(m.POReference),
		PartNumber:    strings.TrimSpace(m.PartNumber),
		Description:   strings.TrimSpace(m.Description),
		LineItems:     m.LineItems,
	}, nil
}

// CandidateMessage is the wire form of entity.CandidatePO. RemainingAmount is
// derived on sync and not accepted from callers.
type CandidateMessage struct {
	PONumber        string          `json:"po_number"`
	POLine          int             `json:"po_line"`
	VendorName      string          `json:"vendor_name,omitempty"`
	VendorID        string          `json:"vendor_id,omitempty"`
	PartNumber      string          `json:"part_number,omitempty"`
	SupplierPart    string          `json:"supplier_part,omitempty"`
	LineDescription string          `json:"line_description,omitempty"`
	LineAmount      decimal.Decimal `json:"line_amount"`
	ReceivedAmount  decimal.Decimal `json:"received_amount"`
	DueDate         string          `json:"due_date,omitempty"`
}

func (m CandidateMessage) toEntity() (entity.CandidatePO, error) {
	due, err := utils.ParseOptionalDate("due_date", m.DueDate)
	if err != nil {
		return entity.CandidatePO{}, err
	}
	return entity.CandidatePO{
		PONumber:        strings.TrimSpace(m.PONumber),
		POLine:          m.POLine,
		VendorName:      m.VendorName,
		VendorID:        m.VendorID,
		PartNumber:      m.PartNumber,
		SupplierPart:    m.SupplierPart,
		LineDescription: m.LineDescription,
		LineAmount:      m.LineAmount,
		ReceivedAmount:  m.ReceivedAmount,
		DueDate:         due,
	}, nil
}

type SubmitInvoiceRequest struct {
	Fields     InvoiceFieldsMessage `json:"fields"`
	SourceText string               `json:"source_text,omitempty"`
}

type SubmitInvoiceTextRequest struct {
	Text string `json:"text"`
}

type InvoiceResponse struct {
	Invoice  *entity.Invoice `json:"invoice"`
	Warnings []string        `json:"warnings,omitempty"`
}

type InvoiceIDRequest struct {
	InvoiceID string `json:"invoice_id"`
}

type MatchOutcomeMessage struct {
	InvoiceID string              `json:"invoice_id"`
	Result    entity.MatchResult  `json:"result"`
	Verdict   constants.Verdict   `json:"verdict"`
	Record    *entity.MatchRecord `json:"record,omitempty"`
}

func outcomeMessage(o *reconcile.MatchOutcome) *MatchOutcomeMessage {
	if o == nil {
		return nil
	}
	return &MatchOutcomeMessage{
		InvoiceID: o.InvoiceID.String(),
		Result:    o.Result,
		Verdict:   o.Verdict,
		Record:    o.Record,
	}
}

type MatchBatchRequest struct {
	InvoiceIDs []string `json:"invoice_ids"`
}

type BatchItemMessage struct {
	InvoiceID string               `json:"invoice_id"`
	Outcome   *MatchOutcomeMessage `json:"outcome,omitempty"`
	Error     string               `json:"error,omitempty"`
}

type MatchBatchResponse struct {
	Items []BatchItemMessage `json:"items"`
}

type JobStatusResponse struct {
	InvoiceID string              `json:"invoice_id"`
	Status    constants.JobStatus `json:"status"`
	Error     string              `json:"error,omitempty"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
}

func jobStatusMessage(invoiceID string, st async.JobState) JobStatusResponse {
	out := JobStatusResponse{InvoiceID: invoiceID, Status: st.Status, Error: st.Error}
	if !st.UpdatedAt.IsZero() {
		out.UpdatedAt = utils.Ptr(st.UpdatedAt)
	}
	return out
}

type DecideRequest struct {
	MatchID string `json:"match_id"`
	Actor   string `json:"actor,omitempty"`
}

type MatchIDRequest struct {
	MatchID string `json:"match_id"`
}

type RecordResponse struct {
	Record *entity.MatchRecord `json:"record"`
}

type ListMatchesRequest struct {
	State     string `json:"state,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type ListMatchesResponse struct {
	Records []*entity.MatchRecord `json:"records"`
}

type SyncCandidatesRequest struct {
	Candidates []CandidateMessage `json:"candidates"`
}

type SyncCandidatesResponse struct {
	Upserted int `json:"upserted"`
}

type ValidationResponse struct {
	Validation entity.MatchValidation `json:"validation"`
}

type ExportMatchesRequest struct {
	State string `json:"state,omitempty"`
}
