package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
)

const (
	MetadataRequestID = "x-request-id"
	MetadataActor     = "x-actor"
)

// UnaryRequestContext copies the request id (generating one when absent) and
// acting user from incoming metadata into the context, echoes the request id
// back in the response header and logs each call.
func UnaryRequestContext(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := firstMetadata(ctx, MetadataRequestID)
		if rid == "" {
			rid = uuid.New().String()
		}
		ctx = common.WithRequestID(ctx, rid)
		if actor := firstMetadata(ctx, MetadataActor); actor != "" {
			ctx = common.WithActor(ctx, actor)
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(MetadataRequestID, rid))

		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc.request",
			"method", info.FullMethod,
			"req_id", rid,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
