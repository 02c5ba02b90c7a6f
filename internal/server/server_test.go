package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/async"
	"github.com/WullieT22/Invoice-to-PO/internal/export"
	"github.com/WullieT22/Invoice-to-PO/internal/matching"
	"github.com/WullieT22/Invoice-to-PO/internal/reconcile"
	"github.com/WullieT22/Invoice-to-PO/internal/repository"
)

type harness struct {
	client *Client
	conn   *grpc.ClientConn
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amount(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newHarness(t *testing.T) harness {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := repository.Open(ctx, repository.Config{DSN: "sqlite:file::memory:"}, log)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, repository.Migrate(db, log))

	invoices := repository.NewInvoiceRepository(db, log)
	records := repository.NewMatchRecordRepository(db, log)
	svc := reconcile.NewService(
		matching.NewMatcher(nil, matching.DefaultConfig(), log),
		invoices,
		repository.NewCandidateRepository(db, log),
		records,
		nil,
		reconcile.DefaultConfig(),
		log,
	)
	queue := async.NewMatchQueue(func(ctx context.Context, job async.Job) error {
		_, err := svc.MatchInvoice(ctx, job.InvoiceID)
		return err
	}, log, async.WithWorkers(1))
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryRequestContext(log)))
	RegisterMatchingServiceServer(gs, NewMatchingService(svc, queue, export.NewService(records, invoices, log), log))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return harness{client: NewClient(conn), conn: conn}
}

func (h harness) seed(t *testing.T) {
	t.Helper()
	resp, err := h.client.SyncCandidates(context.Background(), SyncCandidatesRequest{Candidates: []CandidateMessage{
		{PONumber: "PO-4500", POLine: 1, VendorName: "Acme Corp", LineAmount: dec("1000"), DueDate: "2024-04-30"},
		{PONumber: "PO-7000", POLine: 1, VendorName: "Globex", LineAmount: dec("50")},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Upserted)
}

func (h harness) submit(t *testing.T, fields InvoiceFieldsMessage) string {
	t.Helper()
	resp, err := h.client.SubmitInvoice(context.Background(), SubmitInvoiceRequest{Fields: fields})
	require.NoError(t, err)
	require.NotNil(t, resp.Invoice)
	return resp.Invoice.ID.String()
}

func TestMatchInvoice_AutoApproved(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id := h.submit(t, InvoiceFieldsMessage{
		InvoiceNumber: "INV-1", VendorName: "Acme Corp", POReference: "PO-4500",
		InvoiceAmount: amount("1000"), InvoiceDate: "2024-03-15",
	})

	out, err := h.client.MatchInvoice(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, out.InvoiceID)
	assert.Equal(t, constants.VerdictAutoApprove, out.Verdict)
	assert.Equal(t, constants.MatchSourceFallback, out.Result.Source)
	assert.Equal(t, 1.0, out.Result.Score)
	require.NotNil(t, out.Result.Candidate)
	assert.Equal(t, "PO-4500", out.Result.Candidate.PONumber)
	require.NotNil(t, out.Result.Candidate.DueDate)
	require.NotNil(t, out.Record)
	assert.Equal(t, constants.MatchStateApproved, out.Record.State)
	assert.Equal(t, constants.AutoApproveActor, out.Record.DecidedBy)
}

func TestApproveAndReject(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id := h.submit(t, InvoiceFieldsMessage{VendorName: "Acme Corp", InvoiceAmount: amount("1000")})

	out, err := h.client.MatchInvoice(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, constants.MatchStateProposed, out.Record.State)

	pending, err := h.client.ListPendingMatches(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending.Records, 1)

	_, err = h.client.ApproveMatch(context.Background(), DecideRequest{MatchID: out.Record.ID.String()})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), MetadataActor, "alice")
	rec, err := h.client.ApproveMatch(ctx, DecideRequest{MatchID: out.Record.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, constants.MatchStateApproved, rec.Record.State)
	assert.Equal(t, "alice", rec.Record.DecidedBy)

	_, err = h.client.RejectMatch(context.Background(), DecideRequest{MatchID: out.Record.ID.String(), Actor: "bob"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	var got RecordResponse
	require.NoError(t, h.client.Call(context.Background(), "GetMatch", MatchIDRequest{MatchID: out.Record.ID.String()}, &got))
	assert.Equal(t, constants.MatchStateApproved, got.Record.State)
}

func TestErrorCodes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.MatchInvoice(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.client.MatchInvoice(ctx, "00000000-0000-0000-0000-000000000001")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.client.SubmitInvoice(ctx, SubmitInvoiceRequest{Fields: InvoiceFieldsMessage{InvoiceDate: "15/03/2024"}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = h.client.Call(ctx, "ListMatches", ListMatchesRequest{State: "limbo"}, &ListMatchesResponse{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// Empty candidate pool.
	id := h.submit(t, InvoiceFieldsMessage{VendorName: "Acme Corp"})
	_, err = h.client.MatchInvoice(ctx, id)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubmitInvoiceTextAndBatch(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	var inv InvoiceResponse
	require.NoError(t, h.client.Call(ctx, "SubmitInvoiceText", SubmitInvoiceTextRequest{
		Text: "From: Globex\nTotal: $50.00\n",
	}, &inv))
	require.NotNil(t, inv.Invoice)
	assert.Equal(t, "Globex", inv.Invoice.Fields.VendorName)
	assert.Contains(t, inv.Warnings, "po_reference not found")

	var batch MatchBatchResponse
	require.NoError(t, h.client.Call(ctx, "MatchBatch", MatchBatchRequest{
		InvoiceIDs: []string{inv.Invoice.ID.String(), "00000000-0000-0000-0000-000000000002"},
	}, &batch))
	require.Len(t, batch.Items, 2)
	require.NotNil(t, batch.Items[0].Outcome)
	assert.Equal(t, "PO-7000", batch.Items[0].Outcome.Result.Candidate.PONumber)
	assert.Empty(t, batch.Items[0].Error)
	assert.Nil(t, batch.Items[1].Outcome)
	assert.Contains(t, batch.Items[1].Error, "not found")

	err := h.client.Call(ctx, "MatchBatch", MatchBatchRequest{InvoiceIDs: []string{"bad"}}, &batch)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestEnqueueMatch(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id := h.submit(t, InvoiceFieldsMessage{VendorName: "Acme Corp", POReference: "PO-4500", InvoiceAmount: amount("1000")})
	ctx := context.Background()

	var job JobStatusResponse
	require.NoError(t, h.client.Call(ctx, "EnqueueMatch", InvoiceIDRequest{InvoiceID: id}, &job))
	assert.Equal(t, id, job.InvoiceID)

	require.Eventually(t, func() bool {
		var st JobStatusResponse
		if err := h.client.Call(ctx, "GetMatchJob", InvoiceIDRequest{InvoiceID: id}, &st); err != nil {
			return false
		}
		return st.Status == constants.JobStatusDone
	}, 2*time.Second, 10*time.Millisecond)

	var list ListMatchesResponse
	require.NoError(t, h.client.Call(ctx, "ListMatches", ListMatchesRequest{InvoiceID: id, State: "approved"}, &list))
	require.Len(t, list.Records, 1)

	err := h.client.Call(ctx, "GetMatchJob", InvoiceIDRequest{InvoiceID: "00000000-0000-0000-0000-000000000003"}, &job)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestValidateMatchWithoutOracle(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id := h.submit(t, InvoiceFieldsMessage{VendorName: "Acme Corp", InvoiceAmount: amount("1000")})
	out, err := h.client.MatchInvoice(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, out.Record)

	var v ValidationResponse
	require.NoError(t, h.client.Call(context.Background(), "ValidateMatch", MatchIDRequest{MatchID: out.Record.ID.String()}, &v))
	assert.False(t, v.Validation.IsValid)
	assert.Equal(t, matching.RecommendationError, v.Validation.Recommendation)
}

func TestExportMatches(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	id := h.submit(t, InvoiceFieldsMessage{InvoiceNumber: "INV-7", VendorName: "Acme Corp", InvoiceAmount: amount("1000")})
	_, err := h.client.MatchInvoice(context.Background(), id)
	require.NoError(t, err)

	b, err := h.client.ExportMatches(context.Background(), ExportMatchesRequest{State: "PROPOSED"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Matches")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "INV-7", rows[1][1])
}

func TestRequestIDAndHealth(t *testing.T) {
	h := newHarness(t)

	var header metadata.MD
	ctx := metadata.AppendToOutgoingContext(context.Background(), MetadataRequestID, "req-123")
	err := h.client.Call(ctx, "ListPendingMatches", ListMatchesRequest{}, &ListMatchesResponse{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-123"}, header.Get(MetadataRequestID))

	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
