// Package background provides a facade over engine.Job that adds
// throttled progress callbacks and multi-job aggregation (spec §6.7,
// §8). It is the outermost layer a CLI or caller is expected to use
// directly.
package background

import (
	"context"
	"time"

	"github.com/grailbio/base/traverse"

	"github.com/grailbio/partio/engine"
)

// Job wraps an *engine.Job, adding a throttled Wait variant. The
// underlying engine.Job remains reachable via Engine for specializations
// that need to pull typed results out of its Strategy after Wait returns.
type Job struct {
	eng *engine.Job
}

// New wraps eng.
func New(eng *engine.Job) *Job {
	return &Job{eng: eng}
}

// Engine returns the wrapped engine.Job.
func (j *Job) Engine() *engine.Job {
	return j.eng
}

// Start begins the run (spec §6.7).
func (j *Job) Start(ctx context.Context) {
	j.eng.Start(ctx)
}

// Cancel raises cooperative cancellation.
func (j *Job) Cancel() {
	j.eng.Cancel()
}

// defaultPeriod is used when Wait is called with a non-positive period.
const defaultPeriod = 200 * time.Millisecond

// Wait blocks until the job reaches a terminal state or ctx is done.
// onProgress, if non-nil, is invoked with the current byte count and
// completed-partition count once per period while the job runs, and once
// more when it finishes; progress between two calls is coalesced into the
// next call (spec §5 "Progress callbacks are best-effort and may
// coalesce").
func (j *Job) Wait(ctx context.Context, onProgress func(byteCount, partitions int64), period time.Duration) error {
	if onProgress == nil {
		return j.eng.Wait(ctx)
	}
	if period <= 0 {
		period = defaultPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	done := make(chan error, 1)
	go func() { done <- j.eng.Wait(ctx) }()

	for {
		select {
		case err := <-done:
			onProgress(j.eng.ByteCount(), j.eng.Progress())
			return err
		case <-ticker.C:
			onProgress(j.eng.ByteCount(), j.eng.Progress())
		}
	}
}

// Err returns the first fatal error observed by the job's most recent
// run, or nil.
func (j *Job) Err() error { return j.eng.Err() }

// Cancelled reports whether the job's most recent run was cancelled.
func (j *Job) Cancelled() bool { return j.eng.Cancelled() }

// ByteCount returns the number of bytes processed so far.
func (j *Job) ByteCount() int64 { return j.eng.ByteCount() }

// Group aggregates independent Jobs that run concurrently and share a
// single completion check (spec §6.7, "N independent jobs concurrently
// with a shared progress event", §8).
type Group struct {
	jobs []*Job
}

// NewGroup returns a Group over jobs.
func NewGroup(jobs ...*Job) *Group {
	return &Group{jobs: jobs}
}

// StartAll starts every job in the group.
func (g *Group) StartAll(ctx context.Context) {
	for _, j := range g.jobs {
		j.Start(ctx)
	}
}

// WaitAll waits for every job in the group, running the waits
// concurrently via traverse.Each rather than sequentially (spec §6.7).
func (g *Group) WaitAll(ctx context.Context) error {
	return traverse.Each(len(g.jobs), func(i int) error {
		return g.jobs[i].Wait(ctx, nil, 0)
	})
}

// AnyError returns the first non-nil error among the group's jobs, or
// nil if all succeeded.
func (g *Group) AnyError() error {
	for _, j := range g.jobs {
		if err := j.Err(); err != nil {
			return err
		}
	}
	return nil
}

// AnyCancelled reports whether any job in the group was cancelled.
func (g *Group) AnyCancelled() bool {
	for _, j := range g.jobs {
		if j.Cancelled() {
			return true
		}
	}
	return false
}
