package gallery

import "time"

// OperationKind names a lifecycle operation.
type OperationKind string

const (
	OpCreateFolder OperationKind = "CreateFolder"
	OpRenameFolder OperationKind = "RenameFolder"
	OpDeleteFolder OperationKind = "DeleteFolder"
	OpUpload       OperationKind = "Upload"
	OpDeleteImage  OperationKind = "DeleteImage"
)

// OperationState is the state of a lifecycle operation:
// Idle -> InProgress -> {Committed, Failed}.
type OperationState string

const (
	StateIdle       OperationState = "idle"
	StateInProgress OperationState = "in_progress"
	StateCommitted  OperationState = "committed"
	StateFailed     OperationState = "failed"
)

// Operation tracks one lifecycle operation. Done and Total count the
// per-file steps of multi-file operations.
type Operation struct {
	ID         string
	Kind       OperationKind
	Folder     string
	Target     string
	State      OperationState
	Done       int
	Total      int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// OperationRecorder observes operation state transitions.
type OperationRecorder interface {
	Record(op Operation)
}

// NopRecorder discards every transition.
type NopRecorder struct{}

func (NopRecorder) Record(Operation) {}

func (e *Engine) startOperation(kind OperationKind, folder, target string) *Operation {
	op := &Operation{
		ID:     e.idgen.New(),
		Kind:   kind,
		Folder: folder,
		Target: target,
		State:  StateIdle,
	}
	e.recorder.Record(*op)

	op.State = StateInProgress
	op.StartedAt = e.clock.Now()
	e.recorder.Record(*op)
	return op
}

func (e *Engine) finishOperation(op *Operation, err error) {
	op.FinishedAt = e.clock.Now()
	if err != nil {
		op.State = StateFailed
		op.Err = err
	} else {
		op.State = StateCommitted
	}
	e.recorder.Record(*op)
	e.logger.Info("operation finished",
		"op", op.ID, "kind", string(op.Kind), "folder", op.Folder,
		"state", string(op.State), "done", op.Done, "total", op.Total)
}
