package app

import (
	"context"
	"time"

	"gallery-go/internal/database"
	"gallery-go/internal/gallery"
)

// OperationLog persists lifecycle operations.
type OperationLog interface {
	RecordOperation(ctx context.Context, op gallery.Operation, recordedAt time.Time) error
	ListOperations(ctx context.Context, limit int) ([]*database.OperationRecord, error)
}

// operationRecorder writes every operation transition the engine reports
// to the operation log. A failed write is logged and otherwise ignored: the
// operation itself already happened.
type operationRecorder struct {
	log    OperationLog
	clock  gallery.Clock
	logger gallery.Logger
}

func (r *operationRecorder) Record(op gallery.Operation) {
	if op.State == gallery.StateIdle {
		return
	}
	if err := r.log.RecordOperation(context.Background(), op, r.clock.Now()); err != nil {
		r.logger.Warn("recording operation failed", "op", op.ID, "kind", string(op.Kind), "error", err)
	}
}

var _ gallery.OperationRecorder = (*operationRecorder)(nil)
