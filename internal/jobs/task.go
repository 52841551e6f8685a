package jobs

import (
	"context"
	"sync"

	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

// Task is the handle a running unit of work uses to report progress and to
// observe cancellation. Cancellation is cooperative: the task's context is
// not cancelled by a cancel request, only by engine shutdown.
type Task struct {
	jobID      string
	syncType   models.SyncType
	params     models.JobParameters
	ctx        context.Context
	cancel     chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
	reporter   func(ctx context.Context, jobID string, u StatusUpdate) error
}

func newTask(ctx context.Context, job *models.SyncJob, reporter func(context.Context, string, StatusUpdate) error) *Task {
	return &Task{
		jobID:    job.JobID,
		syncType: job.SyncType,
		params:   job.Parameters,
		ctx:      ctx,
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
		reporter: reporter,
	}
}

func (t *Task) JobID() string                    { return t.jobID }
func (t *Task) SyncType() models.SyncType        { return t.syncType }
func (t *Task) Parameters() models.JobParameters { return t.params }

// Context is cancelled when the engine shuts down
func (t *Task) Context() context.Context { return t.ctx }

// Cancelled reports whether cancellation was requested. Work should check it
// between entities and return promptly once it is true.
func (t *Task) Cancelled() bool {
	select {
	case <-t.cancel:
		return true
	default:
		return false
	}
}

// CancelRequested is closed when cancellation is requested
func (t *Task) CancelRequested() <-chan struct{} { return t.cancel }

// Done is closed once the task's wrapper has finished and deregistered
func (t *Task) Done() <-chan struct{} { return t.done }

// Report writes a progress update for the job and broadcasts it
func (t *Task) Report(ctx context.Context, u StatusUpdate) error {
	if t.reporter == nil {
		return nil
	}
	return t.reporter(ctx, t.jobID, u)
}

func (t *Task) requestCancel() {
	t.cancelOnce.Do(func() { close(t.cancel) })
}
