// Package batch runs the admin-triggered penalty and results jobs: one
// execution per job kind at a time, a bounded timeout per item, and
// partial-success reporting instead of aborting on the first failure.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/scrutineer/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPerItemTimeout = 10 * time.Second
	defaultConcurrency    = 4
)

// JobRecorder persists the audit row for each invocation.
type JobRecorder interface {
	CreateJob(ctx context.Context, job *models.BatchJob) error
	FinishJob(ctx context.Context, id string, processed, failed int, failedIDs string, jobErr error, finishedAt time.Time) error
}

// Options tunes a Runner.
type Options struct {
	PerItemTimeout time.Duration
	Concurrency    int
}

// ProcessFunc handles one item. It must honor ctx.
type ProcessFunc func(ctx context.Context, id uint) error

// PrepareFunc loads a job's inputs and returns the item IDs to process.
type PrepareFunc func(ctx context.Context) ([]uint, ProcessFunc, error)

// Report summarizes one invocation.
type Report struct {
	JobID      string
	Kind       string
	Processed  int
	Failed     []uint
	StartedAt  time.Time
	FinishedAt time.Time
}

// PartialFailure is returned with the report when some items failed.
type PartialFailure struct {
	Kind   string
	Failed []uint
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("batch: %s: %d item(s) failed: %v", e.Kind, len(e.Failed), e.Failed)
}

// Runner executes batch jobs.
type Runner struct {
	rec   JobRecorder
	opts  Options
	group singleflight.Group
	now   func() time.Time
}

// NewRunner creates a Runner. rec may be nil to skip audit rows.
func NewRunner(rec JobRecorder, opts Options) *Runner {
	if opts.PerItemTimeout <= 0 {
		opts.PerItemTimeout = defaultPerItemTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Runner{rec: rec, opts: opts, now: time.Now}
}

type outcome struct {
	report *Report
	err    error
}

// Run executes the job of the given kind. Callers that arrive while the same
// kind is already running share that execution and its report. The shared
// execution is detached from the caller's cancellation; each item is still
// bounded by the per-item timeout.
func (r *Runner) Run(ctx context.Context, kind string, prepare PrepareFunc) (*Report, error) {
	v, _, _ := r.group.Do(kind, func() (interface{}, error) {
		rep, err := r.run(context.WithoutCancel(ctx), kind, prepare)
		return outcome{report: rep, err: err}, nil
	})
	out := v.(outcome)
	return out.report, out.err
}

func (r *Runner) run(ctx context.Context, kind string, prepare PrepareFunc) (*Report, error) {
	rep := &Report{JobID: uuid.NewString(), Kind: kind, StartedAt: r.now()}
	if r.rec != nil {
		if err := r.rec.CreateJob(ctx, &models.BatchJob{ID: rep.JobID, Kind: kind, StartedAt: rep.StartedAt}); err != nil {
			log.Printf("batch: %s: record start: %v", kind, err)
		}
	}

	ids, process, err := prepare(ctx)
	if err != nil {
		err = fmt.Errorf("batch: %s: prepare: %w", kind, err)
		r.finish(ctx, rep, err)
		return rep, err
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.opts.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			err := r.runItem(ctx, id, process)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("batch: %s: skip item %d: %v", kind, id, err)
				rep.Failed = append(rep.Failed, id)
				return nil
			}
			rep.Processed++
			return nil
		})
	}
	g.Wait()
	sort.Slice(rep.Failed, func(i, j int) bool { return rep.Failed[i] < rep.Failed[j] })

	var runErr error
	if len(rep.Failed) > 0 {
		runErr = &PartialFailure{Kind: kind, Failed: rep.Failed}
	}
	r.finish(ctx, rep, runErr)
	return rep, runErr
}

// runItem runs process under the per-item timeout. An item that ignores its
// context is abandoned once the deadline passes.
func (r *Runner) runItem(ctx context.Context, id uint, process ProcessFunc) error {
	itemCtx, cancel := context.WithTimeout(ctx, r.opts.PerItemTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("panic: %v", p)
			}
		}()
		done <- process(itemCtx, id)
	}()

	select {
	case err := <-done:
		return err
	case <-itemCtx.Done():
		return fmt.Errorf("timed out after %s", r.opts.PerItemTimeout)
	}
}

func (r *Runner) finish(ctx context.Context, rep *Report, runErr error) {
	rep.FinishedAt = r.now()
	if r.rec == nil {
		return
	}
	failed := rep.Failed
	if failed == nil {
		failed = []uint{}
	}
	ids, _ := json.Marshal(failed)
	var jobErr error
	if _, partial := runErr.(*PartialFailure); !partial {
		jobErr = runErr
	}
	if err := r.rec.FinishJob(ctx, rep.JobID, rep.Processed, len(rep.Failed), string(ids), jobErr, rep.FinishedAt); err != nil {
		log.Printf("batch: %s: record finish: %v", rep.Kind, err)
	}
}
