// Package worker runs batches of independent jobs on a bounded pool.
package worker

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_progress_sink.go -package=mocks github.com/matsen/shelf/internal/worker ProgressSink

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/logging"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// Status reports how a job finished.
type Status int

const (
	// StatusDone means the job returned a value.
	StatusDone Status = iota
	// StatusFailed means the job returned an error.
	StatusFailed
)

func (s Status) String() string {
	if s == StatusFailed {
		return "failed"
	}
	return "done"
}

// Job is one unit of work. Do must only touch its own inputs.
type Job[T any] struct {
	ID int
	Do func(ctx context.Context) (T, error)
}

// Result is the outcome of one job.
type Result[T any] struct {
	JobID  int
	Status Status
	Value  T
	Err    error
}

// ProgressSink receives progress updates while a batch runs.
type ProgressSink interface {
	// OnProgress is called after each job completes.
	OnProgress(done, total int)
	// OnAllDone is called once the whole batch has drained.
	OnAllDone(batchID string)
}

// ProgressFunc adapts a function to ProgressSink. OnAllDone is a no-op.
type ProgressFunc func(done, total int)

// OnProgress implements ProgressSink.
func (f ProgressFunc) OnProgress(done, total int) { f(done, total) }

// OnAllDone implements ProgressSink.
func (f ProgressFunc) OnAllDone(string) {}

// Master owns the pool configuration and serializes batches.
type Master struct {
	workers int
	sink    ProgressSink
	logger  *zap.Logger

	batch   sync.Mutex
	aborted atomic.Bool
}

// NewMaster creates a master with n workers (DefaultWorkers if n < 1).
func NewMaster(n int, logger *zap.Logger) *Master {
	if n < 1 {
		n = DefaultWorkers
	}
	return &Master{workers: n, logger: logging.OrNop(logger)}
}

// SetProgressSink sets the progress sink for subsequent batches.
func (m *Master) SetProgressSink(sink ProgressSink) {
	m.batch.Lock()
	defer m.batch.Unlock()
	m.sink = sink
}

// Workers returns the pool size.
func (m *Master) Workers() int { return m.workers }

// Abort stops the running batch. Workers finish their current job, skip the
// rest, and Run returns failure.ErrCancelled.
func (m *Master) Abort() {
	m.aborted.Store(true)
}

// Run executes jobs on the pool and returns their results ordered by JobID.
// A new batch waits until the previous one has drained. On abort or context
// cancellation, partial results are discarded and failure.ErrCancelled is
// returned.
func Run[T any](ctx context.Context, m *Master, jobs []Job[T]) ([]Result[T], error) {
	m.batch.Lock()
	defer m.batch.Unlock()
	m.aborted.Store(false)

	batchID := uuid.NewString()
	total := len(jobs)
	logger := logging.FromContext(ctx, m.logger).With(zap.String("batch_id", batchID))
	logger.Debug("batch started", zap.Int("jobs", total), zap.Int("workers", m.workers))

	stopped := func() bool {
		return m.aborted.Load() || ctx.Err() != nil
	}

	queue := make(chan Job[T], m.workers)
	out := make(chan Result[T], m.workers)

	go func() {
		defer close(queue)
		for _, job := range jobs {
			if stopped() {
				return
			}
			select {
			case queue <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				if stopped() {
					continue
				}
				out <- runJob(ctx, job)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]Result[T], 0, total)
	for r := range out {
		results = append(results, r)
		if r.Err != nil {
			logger.Debug("job failed", zap.Int("job_id", r.JobID), zap.Error(r.Err))
		}
		if m.sink != nil {
			m.sink.OnProgress(len(results), total)
		}
	}

	if stopped() {
		logger.Info("batch cancelled", zap.Int("completed", len(results)), zap.Int("jobs", total))
		return nil, fmt.Errorf("batch %s: %w", batchID, failure.ErrCancelled)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].JobID < results[j].JobID })
	if m.sink != nil {
		m.sink.OnAllDone(batchID)
	}
	logger.Debug("batch done", zap.Int("jobs", total))
	return results, nil
}

func runJob[T any](ctx context.Context, job Job[T]) (r Result[T]) {
	r.JobID = job.ID
	defer func() {
		if p := recover(); p != nil {
			r.Status = StatusFailed
			r.Err = fmt.Errorf("job %d panicked: %v", job.ID, p)
		}
	}()
	v, err := job.Do(ctx)
	if err != nil {
		r.Status = StatusFailed
		r.Err = err
		return r
	}
	r.Status = StatusDone
	r.Value = v
	return r
}

// Values returns the values of successful results in order.
func Values[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Status == StatusDone {
			out = append(out, r.Value)
		}
	}
	return out
}
