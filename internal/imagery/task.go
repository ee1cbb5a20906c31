package imagery

import (
	"context"
	"fmt"
	"time"

	"github.com/forest-guardian/satfusion/internal/log"
	"go.uber.org/zap"
)

type TaskState string

const (
	StateUnsubmitted TaskState = "UNSUBMITTED"
	StateReady       TaskState = "READY"
	StateRunning     TaskState = "RUNNING"
	StateCompleted   TaskState = "COMPLETED"
	StateFailed      TaskState = "FAILED"
	StateCancelled   TaskState = "CANCELLED"
)

type TaskStatus struct {
	State        TaskState
	ErrorMessage string
}

// Task is an asynchronous export job owned by the imagery service.
type Task interface {
	Start(ctx context.Context) error
	Active(ctx context.Context) (bool, error)
	Status(ctx context.Context) (TaskStatus, error)
}

// Monitor polls task every interval until it is no longer active. Failed
// and cancelled tasks are logged and reported as ErrTaskFailed and
// ErrTaskCancelled. There is no timeout; only ctx stops the loop early.
func Monitor(ctx context.Context, task Task, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		active, err := task.Active(ctx)
		if err != nil {
			return fmt.Errorf("failed to query task: %w", err)
		}
		status, err := task.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to query task status: %w", err)
		}

		switch status.State {
		case StateFailed:
			log.Error(logTag+"export task failed", zap.String("error", status.ErrorMessage))
			return fmt.Errorf("%w: %s", ErrTaskFailed, status.ErrorMessage)
		case StateCancelled:
			log.Warn(logTag + "the export task was cancelled")
			return ErrTaskCancelled
		}
		if !active {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
