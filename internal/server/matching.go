package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/WullieT22/Invoice-to-PO/constants"
	"github.com/WullieT22/Invoice-to-PO/internal/async"
	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/entity"
	"github.com/WullieT22/Invoice-to-PO/internal/export"
	"github.com/WullieT22/Invoice-to-PO/internal/reconcile"
	"github.com/WullieT22/Invoice-to-PO/internal/repository"
	"github.com/WullieT22/Invoice-to-PO/internal/utils"
)

const maxBatchSize = 200

// MatchingService implements MatchingServiceServer over the reconcile service.
type MatchingService struct {
	svc    *reconcile.Service
	queue  *async.MatchQueue
	export *export.Service
	logger *slog.Logger
}

// NewMatchingService wires the gRPC surface. queue and exp may be nil, in which
// case EnqueueMatch/GetMatchJob and ExportMatches report Unavailable.
func NewMatchingService(svc *reconcile.Service, queue *async.MatchQueue, exp *export.Service, logger *slog.Logger) *MatchingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchingService{svc: svc, queue: queue, export: exp, logger: logger}
}

func (s *MatchingService) SubmitInvoice(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "SubmitInvoice", in, func(ctx context.Context, req SubmitInvoiceRequest) (InvoiceResponse, error) {
		fields, err := req.Fields.toEntity()
		if err != nil {
			return InvoiceResponse{}, err
		}
		inv, err := s.svc.SubmitInvoice(ctx, fields, req.SourceText)
		if err != nil {
			return InvoiceResponse{}, err
		}
		return InvoiceResponse{Invoice: inv}, nil
	})
}

func (s *MatchingService) SubmitInvoiceText(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "SubmitInvoiceText", in, func(ctx context.Context, req SubmitInvoiceTextRequest) (InvoiceResponse, error) {
		inv, res, err := s.svc.SubmitInvoiceText(ctx, req.Text)
		if err != nil {
			return InvoiceResponse{}, err
		}
		return InvoiceResponse{Invoice: inv, Warnings: res.Warnings}, nil
	})
}

func (s *MatchingService) MatchInvoice(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "MatchInvoice", in, func(ctx context.Context, req InvoiceIDRequest) (*MatchOutcomeMessage, error) {
		id, err := utils.ParseID("invoice_id", req.InvoiceID)
		if err != nil {
			return nil, err
		}
		out, err := s.svc.MatchInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		return outcomeMessage(out), nil
	})
}

func (s *MatchingService) EnqueueMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "EnqueueMatch", in, func(ctx context.Context, req InvoiceIDRequest) (JobStatusResponse, error) {
		if s.queue == nil {
			return JobStatusResponse{}, status.Error(codes.Unavailable, "background matching is disabled")
		}
		id, err := utils.ParseID("invoice_id", req.InvoiceID)
		if err != nil {
			return JobStatusResponse{}, err
		}
		if err := s.queue.Enqueue(ctx, async.Job{InvoiceID: id}); err != nil {
			if errors.Is(err, async.ErrQueueClosed) {
				return JobStatusResponse{}, status.Error(codes.Unavailable, err.Error())
			}
			return JobStatusResponse{}, err
		}
		st, _ := s.queue.Status(id)
		return jobStatusMessage(id.String(), st), nil
	})
}

func (s *MatchingService) GetMatchJob(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "GetMatchJob", in, func(ctx context.Context, req InvoiceIDRequest) (JobStatusResponse, error) {
		if s.queue == nil {
			return JobStatusResponse{}, status.Error(codes.Unavailable, "background matching is disabled")
		}
		id, err := utils.ParseID("invoice_id", req.InvoiceID)
		if err != nil {
			return JobStatusResponse{}, err
		}
		st, ok := s.queue.Status(id)
		if !ok {
			return JobStatusResponse{}, common.NewAppError("NOT_FOUND", "no match job for invoice "+id.String(), common.ErrNotFound)
		}
		return jobStatusMessage(id.String(), st), nil
	})
}

func (s *MatchingService) MatchBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "MatchBatch", in, func(ctx context.Context, req MatchBatchRequest) (MatchBatchResponse, error) {
		if len(req.InvoiceIDs) > maxBatchSize {
			return MatchBatchResponse{}, common.InvalidInput("at most %d invoice_ids per batch", maxBatchSize)
		}
		ids := make([]uuid.UUID, 0, len(req.InvoiceIDs))
		for _, raw := range req.InvoiceIDs {
			id, err := utils.ParseID("invoice_ids", raw)
			if err != nil {
				return MatchBatchResponse{}, err
			}
			ids = append(ids, id)
		}
		items, err := s.svc.MatchBatch(ctx, ids)
		if err != nil {
			return MatchBatchResponse{}, err
		}
		out := MatchBatchResponse{Items: make([]BatchItemMessage, 0, len(items))}
		for _, it := range items {
			msg := BatchItemMessage{InvoiceID: it.InvoiceID.String(), Outcome: outcomeMessage(it.Outcome)}
			if it.Err != nil {
				msg.Error = status.Convert(common.ToStatus(it.Err)).Message()
			}
			out.Items = append(out.Items, msg)
		}
		return out, nil
	})
}

func (s *MatchingService) ApproveMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "ApproveMatch", in, func(ctx context.Context, req DecideRequest) (RecordResponse, error) {
		return s.decide(ctx, req, s.svc.Approve)
	})
}

func (s *MatchingService) RejectMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "RejectMatch", in, func(ctx context.Context, req DecideRequest) (RecordResponse, error) {
		return s.decide(ctx, req, s.svc.Reject)
	})
}

func (s *MatchingService) decide(ctx context.Context, req DecideRequest, fn func(context.Context, uuid.UUID, string) (*entity.MatchRecord, error)) (RecordResponse, error) {
	id, err := utils.ParseID("match_id", req.MatchID)
	if err != nil {
		return RecordResponse{}, err
	}
	rec, err := fn(ctx, id, strings.TrimSpace(req.Actor))
	if err != nil {
		return RecordResponse{}, err
	}
	return RecordResponse{Record: rec}, nil
}

func (s *MatchingService) GetMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "GetMatch", in, func(ctx context.Context, req MatchIDRequest) (RecordResponse, error) {
		id, err := utils.ParseID("match_id", req.MatchID)
		if err != nil {
			return RecordResponse{}, err
		}
		rec, err := s.svc.GetRecord(ctx, id)
		if err != nil {
			return RecordResponse{}, err
		}
		return RecordResponse{Record: rec}, nil
	})
}

func (s *MatchingService) ListPendingMatches(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "ListPendingMatches", in, func(ctx context.Context, req ListMatchesRequest) (ListMatchesResponse, error) {
		recs, err := s.svc.ListPending(ctx, req.Limit)
		if err != nil {
			return ListMatchesResponse{}, err
		}
		return ListMatchesResponse{Records: recs}, nil
	})
}

func (s *MatchingService) ListMatches(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "ListMatches", in, func(ctx context.Context, req ListMatchesRequest) (ListMatchesResponse, error) {
		filter, err := listFilter(req.State, req.InvoiceID, req.Limit)
		if err != nil {
			return ListMatchesResponse{}, err
		}
		recs, err := s.svc.ListRecords(ctx, filter)
		if err != nil {
			return ListMatchesResponse{}, err
		}
		return ListMatchesResponse{Records: recs}, nil
	})
}

func (s *MatchingService) SyncCandidates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "SyncCandidates", in, func(ctx context.Context, req SyncCandidatesRequest) (SyncCandidatesResponse, error) {
		cands := make([]entity.CandidatePO, 0, len(req.Candidates))
		for _, m := range req.Candidates {
			c, err := m.toEntity()
			if err != nil {
				return SyncCandidatesResponse{}, err
			}
			cands = append(cands, c)
		}
		n, err := s.svc.SyncCandidates(ctx, cands)
		if err != nil {
			return SyncCandidatesResponse{}, err
		}
		return SyncCandidatesResponse{Upserted: n}, nil
	})
}

func (s *MatchingService) ValidateMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return handle(ctx, s.logger, "ValidateMatch", in, func(ctx context.Context, req MatchIDRequest) (ValidationResponse, error) {
		id, err := utils.ParseID("match_id", req.MatchID)
		if err != nil {
			return ValidationResponse{}, err
		}
		v, err := s.svc.ValidateMatch(ctx, id)
		if err != nil {
			return ValidationResponse{}, err
		}
		return ValidationResponse{Validation: v}, nil
	})
}

func (s *MatchingService) ExportMatches(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	if s.export == nil {
		return nil, status.Error(codes.Unavailable, "export is disabled")
	}
	var req ExportMatchesRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(ctx, s.logger, "ExportMatches", err)
	}
	filter, err := listFilter(req.State, "", 0)
	if err != nil {
		return nil, toStatus(ctx, s.logger, "ExportMatches", err)
	}
	xlsx, _, err := s.export.ExportMatchesXLSX(ctx, filter)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "state", req.State, "error", err)
		return nil, toStatus(ctx, s.logger, "ExportMatches", err)
	}
	return wrapperspb.Bytes(xlsx), nil
}

func listFilter(state, invoiceID string, limit int) (repository.ListFilter, error) {
	f := repository.ListFilter{Limit: limit}
	if state = strings.ToUpper(strings.TrimSpace(state)); state != "" {
		f.State = constants.MatchState(state)
		if !f.State.Valid() {
			return f, common.InvalidInput("unknown state %q", state)
		}
	}
	if strings.TrimSpace(invoiceID) != "" {
		id, err := utils.ParseID("invoice_id", invoiceID)
		if err != nil {
			return f, err
		}
		f.InvoiceID = id
	}
	if limit < 0 {
		return f, common.InvalidInput("limit must be >= 0")
	}
	return f, nil
}

// toStatus logs server-side failures and converts err to a gRPC status.
func toStatus(ctx context.Context, logger *slog.Logger, method string, err error) error {
	st := status.Convert(common.ToStatus(err))
	if st.Code() == codes.Internal || st.Code() == codes.Unknown {
		logger.Error("grpc.handler.failed",
			"method", method, "req_id", common.RequestIDFromContext(ctx), "error", err)
	}
	return st.Err()
}
