package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("queue is shut down")

// Job asks for one stored invoice to be matched.
type Job struct {
	InvoiceID   uuid.UUID
	SubmittedAt time.Time
	RequestID   string
}

// Handler processes one job. It must honor ctx.
type Handler func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
