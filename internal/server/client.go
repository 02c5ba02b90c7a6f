package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls MatchingService, encoding the message types in messages.go.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and decodes the reply into out.
func (c *Client) Call(ctx context.Context, method string, req, out any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, resp, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return fromStruct(resp, out)
}

func (c *Client) SubmitInvoice(ctx context.Context, req SubmitInvoiceRequest) (InvoiceResponse, error) {
	var out InvoiceResponse
	err := c.Call(ctx, "SubmitInvoice", req, &out)
	return out, err
}

func (c *Client) MatchInvoice(ctx context.Context, invoiceID string) (MatchOutcomeMessage, error) {
	var out MatchOutcomeMessage
	err := c.Call(ctx, "MatchInvoice", InvoiceIDRequest{InvoiceID: invoiceID}, &out)
	return out, err
}

func (c *Client) SyncCandidates(ctx context.Context, req SyncCandidatesRequest) (SyncCandidatesResponse, error) {
	var out SyncCandidatesResponse
	err := c.Call(ctx, "SyncCandidates", req, &out)
	return out, err
}

func (c *Client) ApproveMatch(ctx context.Context, req DecideRequest) (RecordResponse, error) {
	var out RecordResponse
	err := c.Call(ctx, "ApproveMatch", req, &out)
	return out, err
}

func (c *Client) RejectMatch(ctx context.Context, req DecideRequest) (RecordResponse, error) {
	var out RecordResponse
	err := c.Call(ctx, "RejectMatch", req, &out)
	return out, err
}

func (c *Client) ListPendingMatches(ctx context.Context, limit int) (ListMatchesResponse, error) {
	var out ListMatchesResponse
	err := c.Call(ctx, "ListPendingMatches", ListMatchesRequest{Limit: limit}, &out)
	return out, err
}

// ExportMatches returns the XLSX workbook bytes.
func (c *Client) ExportMatches(ctx context.Context, req ExportMatchesRequest, opts ...grpc.CallOption) ([]byte, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, fullMethod("ExportMatches"), in, out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}
