package imagery

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Renderer produces a GeoTIFF for a request.
type Renderer interface {
	Process(ctx context.Context, req ProcessRequest) ([]byte, error)
}

// ExportSpec names where a rendered request ends up.
type ExportSpec struct {
	Request ProcessRequest
	// Folder and FilePrefix form the sink key <Folder>/<FilePrefix>.tif.
	Folder     string
	FilePrefix string
}

func (s ExportSpec) Key() string {
	return s.Folder + "/" + s.FilePrefix + ".tif"
}

// ProcessTask runs one export in the background: render through the
// imagery service, then write the result to the sink.
type ProcessTask struct {
	ID string

	spec     ExportSpec
	renderer Renderer
	sink     storage.Sink

	mu       sync.Mutex
	state    TaskState
	errMsg   string
	location string
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewProcessTask(renderer Renderer, sink storage.Sink, spec ExportSpec) *ProcessTask {
	return &ProcessTask{
		ID:       uuid.NewString(),
		spec:     spec,
		renderer: renderer,
		sink:     sink,
		state:    StateUnsubmitted,
		done:     make(chan struct{}),
	}
}

func (t *ProcessTask) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateUnsubmitted {
		return ErrTaskStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.state = StateReady
	log.Info(logTag+"export task submitted", zap.String("id", t.ID), zap.String("key", t.spec.Key()))
	go t.run(runCtx)
	return nil
}

func (t *ProcessTask) run(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()

	if !t.transition(StateReady, StateRunning) {
		return
	}

	data, err := t.renderer.Process(ctx, t.spec.Request)
	if err == nil {
		var loc string
		loc, err = t.sink.Put(ctx, t.spec.Key(), bytes.NewReader(data))
		if err == nil {
			t.finish(StateCompleted, "", loc)
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		t.finish(StateCancelled, "", "")
		return
	}
	t.finish(StateFailed, err.Error(), "")
}

func (t *ProcessTask) transition(from, to TaskState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != from {
		return false
	}
	t.state = to
	return true
}

func (t *ProcessTask) finish(state TaskState, msg, loc string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateCancelled {
		return
	}
	t.state = state
	t.errMsg = msg
	t.location = loc
}

func (t *ProcessTask) Active(context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateReady || t.state == StateRunning, nil
}

func (t *ProcessTask) Status(context.Context) (TaskStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TaskStatus{State: t.state, ErrorMessage: t.errMsg}, nil
}

// Cancel stops a pending or running task.
func (t *ProcessTask) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case StateUnsubmitted:
		t.state = StateCancelled
		close(t.done)
	case StateReady, StateRunning:
		t.state = StateCancelled
		t.cancel()
	}
}

// Done is closed once the task stops.
func (t *ProcessTask) Done() <-chan struct{} {
	return t.done
}

// Location is where the export was written, once completed.
func (t *ProcessTask) Location() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.location
}
