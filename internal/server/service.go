package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "invoicematch.v1.MatchingService"

// MatchingServiceServer is the server API for the matching service. Requests
// and responses are JSON-shaped Structs; see messages.go for their fields.
type MatchingServiceServer interface {
	SubmitInvoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitInvoiceText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MatchInvoice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnqueueMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMatchJob(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MatchBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RejectMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPendingMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncCandidates(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportMatches(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

func unary[Resp proto.Message](method string, call func(MatchingServiceServer, context.Context, *structpb.Struct) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(MatchingServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ServiceDesc describes MatchingService for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SubmitInvoice", MatchingServiceServer.SubmitInvoice),
		unary("SubmitInvoiceText", MatchingServiceServer.SubmitInvoiceText),
		unary("MatchInvoice", MatchingServiceServer.MatchInvoice),
		unary("EnqueueMatch", MatchingServiceServer.EnqueueMatch),
		unary("GetMatchJob", MatchingServiceServer.GetMatchJob),
		unary("MatchBatch", MatchingServiceServer.MatchBatch),
		unary("ApproveMatch", MatchingServiceServer.ApproveMatch),
		unary("RejectMatch", MatchingServiceServer.RejectMatch),
		unary("GetMatch", MatchingServiceServer.GetMatch),
		unary("ListPendingMatches", MatchingServiceServer.ListPendingMatches),
		unary("ListMatches", MatchingServiceServer.ListMatches),
		unary("SyncCandidates", MatchingServiceServer.SyncCandidates),
		unary("ValidateMatch", MatchingServiceServer.ValidateMatch),
		unary("ExportMatches", MatchingServiceServer.ExportMatches),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoicematch/v1/matching.proto",
}

// RegisterMatchingServiceServer registers srv on s.
func RegisterMatchingServiceServer(s grpc.ServiceRegistrar, srv MatchingServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// handle decodes the request into Req, runs fn and encodes its result,
// mapping errors onto gRPC status codes.
func handle[Req, Resp any](ctx context.Context, logger *slog.Logger, method string, in *structpb.Struct, fn func(context.Context, Req) (Resp, error)) (*structpb.Struct, error) {
	var req Req
	if err := fromStruct(in, &req); err != nil {
		return nil, toStatus(ctx, logger, method, err)
	}
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, toStatus(ctx, logger, method, err)
	}
	out, err := toStruct(resp)
	if err != nil {
		return nil, toStatus(ctx, logger, method, err)
	}
	return out, nil
}
