// Package jobs runs queued scan and translate operations one at a time.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/minios-linux/langsync/metrics"
	"github.com/minios-linux/langsync/storage"
)

// Handler executes the payload of one job.
type Handler func(ctx context.Context, payload []byte) error

// ScanPayload is the payload of a scan job.
type ScanPayload struct{}

// TranslatePayload is the payload of a translate job.
type TranslatePayload struct {
	RecordIDs []int64 `json:"record_ids"`
	Source    string  `json:"source"`
	Target    string  `json:"target,omitempty"`
	All       bool    `json:"all,omitempty"`
}

// Enqueue encodes payload and appends a job of kind to q.
func Enqueue(ctx context.Context, q storage.JobQueue, kind storage.JobKind, payload any) (*storage.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	return q.Enqueue(ctx, kind, data)
}

// Runner claims jobs from a queue and dispatches them by kind.
type Runner struct {
	queue    storage.JobQueue
	handlers map[storage.JobKind]Handler
	logger   *log.Logger
	metrics  *metrics.Metrics
	interval time.Duration
}

// NewRunner returns a Runner polling q every interval when idle.
func NewRunner(q storage.JobQueue, interval time.Duration, logger *log.Logger, m *metrics.Metrics) *Runner {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Runner{
		queue:    q,
		handlers: make(map[storage.JobKind]Handler),
		logger:   logger,
		metrics:  m,
		interval: interval,
	}
}

// Handle registers h for kind.
func (r *Runner) Handle(kind storage.JobKind, h Handler) {
	r.handlers[kind] = h
}

// RunOnce processes at most one job. It reports whether a job was found;
// a failing job is recorded on the queue and is not an error here. A job
// whose handler fails after ctx is cancelled goes back to the queue.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	job, err := r.queue.ClaimNext(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	logger := r.logger.With("job", job.ID, "kind", string(job.Kind))
	logger.Info("job started")

	runErr := r.dispatch(ctx, job)
	r.metrics.Job(string(job.Kind), runErr)

	// The job's outcome is recorded even when ctx is already cancelled.
	finishCtx := context.WithoutCancel(ctx)
	if runErr != nil && ctx.Err() != nil {
		logger.Warn("job interrupted", "err", runErr)
		if err := r.queue.Requeue(finishCtx, job.ID); err != nil {
			return true, fmt.Errorf("requeueing job %s: %w", job.ID, err)
		}
		return true, nil
	}
	if runErr != nil {
		logger.Error("job failed", "err", runErr)
		if err := r.queue.Fail(finishCtx, job.ID, runErr.Error()); err != nil {
			return true, fmt.Errorf("marking job %s failed: %w", job.ID, err)
		}
		return true, nil
	}
	if err := r.queue.Complete(finishCtx, job.ID); err != nil {
		return true, fmt.Errorf("marking job %s done: %w", job.ID, err)
	}
	logger.Info("job done")
	return true, nil
}

func (r *Runner) dispatch(ctx context.Context, job *storage.Job) (err error) {
	h, ok := r.handlers[job.Kind]
	if !ok {
		return fmt.Errorf("no handler for job kind %q", job.Kind)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return h(ctx, job.Payload)
}

// Recover requeues jobs left running by a worker that stopped mid-job.
// Call it once before Drain or Run.
func (r *Runner) Recover(ctx context.Context) error {
	n, err := r.queue.RequeueRunning(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Warn("requeued interrupted jobs", "jobs", n)
	}
	return nil
}

// Drain processes jobs until the queue is empty.
func (r *Runner) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		found, err := r.RunOnce(ctx)
		if err != nil || !found {
			return n, err
		}
		n++
	}
}

// Run processes jobs until ctx is cancelled, sleeping between polls while
// the queue is empty.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("worker poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
