package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/matsen/shelf/internal/failure"
	"github.com/matsen/shelf/internal/worker"
	"github.com/matsen/shelf/internal/worker/mocks"
)

func squareJobs(n int) []worker.Job[int] {
	jobs := make([]worker.Job[int], n)
	for i := range jobs {
		i := i
		jobs[i] = worker.Job[int]{ID: i, Do: func(ctx context.Context) (int, error) {
			return i * i, nil
		}}
	}
	return jobs
}

func TestRun_OrderedResultsAndProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sink := mocks.NewMockProgressSink(ctrl)
	sink.EXPECT().OnProgress(gomock.Any(), 20).Times(20)
	sink.EXPECT().OnAllDone(gomock.Any()).Times(1)

	m := worker.NewMaster(4, nil)
	m.SetProgressSink(sink)

	results, err := worker.Run(context.Background(), m, squareJobs(20))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 20 {
		t.Fatalf("got %d results, want 20", len(results))
	}
	for i, r := range results {
		if r.JobID != i || r.Value != i*i || r.Status != worker.StatusDone {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
}

func TestRun_FailedJobDoesNotStopBatch(t *testing.T) {
	boom := errors.New("boom")
	jobs := squareJobs(3)
	jobs[1].Do = func(ctx context.Context) (int, error) { return 0, boom }
	jobs = append(jobs, worker.Job[int]{ID: 3, Do: func(ctx context.Context) (int, error) { panic("bad input") }})

	results, err := worker.Run(context.Background(), worker.NewMaster(2, nil), jobs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[1].Status != worker.StatusFailed || !errors.Is(results[1].Err, boom) {
		t.Errorf("results[1] = %+v, want failed with boom", results[1])
	}
	if results[3].Status != worker.StatusFailed || results[3].Err == nil {
		t.Errorf("results[3] = %+v, want failed from panic", results[3])
	}
	if got := worker.Values(results); len(got) != 2 || got[0] != 0 || got[1] != 4 {
		t.Errorf("Values() = %v, want [0 4]", got)
	}
}

func TestRun_AbortDiscardsResults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sink := mocks.NewMockProgressSink(ctrl)
	sink.EXPECT().OnProgress(gomock.Any(), gomock.Any()).AnyTimes()
	// OnAllDone must not be called for an aborted batch.

	m := worker.NewMaster(1, nil)
	m.SetProgressSink(sink)

	var ran atomic.Int32
	jobs := make([]worker.Job[int], 10)
	for i := range jobs {
		jobs[i] = worker.Job[int]{ID: i, Do: func(ctx context.Context) (int, error) {
			ran.Add(1)
			m.Abort()
			return 1, nil
		}}
	}

	results, err := worker.Run(context.Background(), m, jobs)
	if !failure.IsCancelled(err) {
		t.Fatalf("Run() error = %v, want cancelled", err)
	}
	if results != nil {
		t.Errorf("Run() results = %v, want nil", results)
	}
	if n := ran.Load(); n >= 10 {
		t.Errorf("%d jobs ran after abort, want fewer than 10", n)
	}

	// The abort flag is reset for the next batch.
	m.SetProgressSink(nil)
	results, err = worker.Run(context.Background(), m, squareJobs(3))
	if err != nil || len(results) != 3 {
		t.Errorf("Run() after abort = %d results, err %v", len(results), err)
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := []worker.Job[int]{{ID: 0, Do: func(ctx context.Context) (int, error) {
		cancel()
		return 0, nil
	}}}
	jobs = append(jobs, squareJobs(5)...)

	_, err := worker.Run(ctx, worker.NewMaster(1, nil), jobs)
	if !errors.Is(err, failure.ErrCancelled) {
		t.Errorf("Run() error = %v, want ErrCancelled", err)
	}
}

func TestRun_BatchesAreSerialized(t *testing.T) {
	m := worker.NewMaster(4, nil)

	var active, overlaps atomic.Int32
	batch := func() []worker.Job[int] {
		return []worker.Job[int]{{ID: 0, Do: func(ctx context.Context) (int, error) {
			if active.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			return 0, nil
		}}}
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := worker.Run(context.Background(), m, batch()); err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := overlaps.Load(); n != 0 {
		t.Errorf("%d batches overlapped", n)
	}
}

func TestRun_Empty(t *testing.T) {
	var calls int
	m := worker.NewMaster(0, nil)
	m.SetProgressSink(worker.ProgressFunc(func(done, total int) { calls++ }))

	results, err := worker.Run[int](context.Background(), m, nil)
	if err != nil || len(results) != 0 {
		t.Errorf("Run(nil) = %v, %v", results, err)
	}
	if calls != 0 {
		t.Errorf("OnProgress called %d times for an empty batch", calls)
	}
	if m.Workers() != worker.DefaultWorkers {
		t.Errorf("Workers() = %d, want %d", m.Workers(), worker.DefaultWorkers)
	}
}
