package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// jobState is the Job's coarse lifecycle state (spec §5).
type jobState int32

const (
	stateIdle jobState = iota
	stateRunning
	stateDone
)

// Job drives one run of the engine over a single input: plan, dispatch to
// the Worker Pool, join results, and report a terminal state. A Job may be
// restarted after it reaches a terminal state; Start is not safe to call
// concurrently with itself (spec §5 "single caller owns Start/Cancel").
type Job struct {
	Path string // descriptive only, used for logging/progress (spec §5)

	cfg     Config
	fileSrc *FileSource
	// stream mode fields; mutually exclusive with fileSrc.
	streamSrc    SequentialSource
	streamCloser func() error

	newStrategy StrategyFactory

	state     int32 // jobState, atomic
	cancel    *Cancellation
	errOnce   errors.Once
	byteCount int64 // atomic
	progress  int64 // atomic count of completed partitions

	mu       sync.Mutex
	doneCh   chan struct{}
	strategy Strategy // the Strategy used by the most recent run, for result retrieval
}

// NewFileJob returns a Job that processes path in file mode.
func NewFileJob(path string, cfg Config, factory StrategyFactory) *Job {
	return &Job{
		Path:        path,
		cfg:         cfg,
		fileSrc:     NewFileSource(path, cfg.BufferMode),
		newStrategy: factory,
	}
}

// NewStreamJob returns a Job that processes src in stream mode. closer, if
// non-nil, is invoked once the run completes (success, error, or
// cancellation) to release the underlying pipe or decoder.
func NewStreamJob(label string, src SequentialSource, closer func() error, cfg Config, factory StrategyFactory) *Job {
	return &Job{
		Path:         label,
		cfg:          cfg,
		streamSrc:    src,
		streamCloser: closer,
		newStrategy:  factory,
	}
}

// Start begins a run in a new goroutine, returning immediately. It is safe
// to call again once the previous run has reached a terminal state (spec
// §5 "idempotent restart from a terminal state"); calling it while a run
// is already in progress is a programmer error.
func (j *Job) Start(ctx context.Context) {
	if atomic.LoadInt32(&j.state) == int32(stateRunning) {
		panic("engine: Start called while a run is already in progress")
	}
	atomic.StoreInt32(&j.state, int32(stateRunning))
	j.errOnce = errors.Once{}
	atomic.StoreInt64(&j.byteCount, 0)
	atomic.StoreInt64(&j.progress, 0)
	j.cancel = NewCancellation()

	j.mu.Lock()
	j.doneCh = make(chan struct{})
	done := j.doneCh
	j.mu.Unlock()

	go func() {
		defer close(done)
		defer atomic.StoreInt32(&j.state, int32(stateDone))
		j.run(ctx)
	}()
}

// Cancel raises cooperative cancellation for the current run. It is a
// no-op if no run is in progress.
func (j *Job) Cancel() {
	c := j.cancel
	if c != nil && j.Running() {
		log.Debug.Printf("engine: job %s: cancel requested", j.Path)
		c.Cancel()
	}
}

// Wait blocks until the current run reaches a terminal state or ctx is
// done, whichever comes first.
func (j *Job) Wait(ctx context.Context) error {
	j.mu.Lock()
	done := j.doneCh
	j.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is currently in progress.
func (j *Job) Running() bool {
	return atomic.LoadInt32(&j.state) == int32(stateRunning)
}

// Cancelled reports whether the most recent (or current) run observed
// cancellation.
func (j *Job) Cancelled() bool {
	if j.cancel == nil {
		return false
	}
	return j.cancel.Cancelled()
}

// Err returns the first fatal error observed by the most recent run, or
// nil.
func (j *Job) Err() error {
	return j.errOnce.Err()
}

// ByteCount returns the number of input bytes processed so far by the
// current or most recent run (spec §5 "byte_count").
func (j *Job) ByteCount() int64 {
	return atomic.LoadInt64(&j.byteCount)
}

// Progress returns the number of partitions completed so far.
func (j *Job) Progress() int64 {
	return atomic.LoadInt64(&j.progress)
}

// Strategy returns the Strategy instance used by the most recent run, so
// callers can retrieve specialization-specific results after Wait returns.
func (j *Job) Strategy() Strategy {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.strategy
}

// run performs one full plan/dispatch/join cycle (spec §4.4's termination
// predicate falls directly out of Go channel-close semantics here: the
// result channel closes only once the descriptor channel has closed and
// every worker has drained it, which is exactly "planner done AND queues
// empty AND in-flight == 0").
func (j *Job) run(ctx context.Context) {
	log.Debug.Printf("engine: job %s starting", j.Path)

	cfg, err := j.cfg.normalize()
	if err != nil {
		log.Error.Printf("engine: job %s: invalid config: %v", j.Path, err)
		j.errOnce.Set(err)
		return
	}
	j.cfg = cfg

	strategy := j.newStrategy(j.cancel)
	j.mu.Lock()
	j.strategy = strategy
	j.mu.Unlock()

	workers := cfg.workerCount()
	descCh := make(chan Descriptor, workers)
	resCh := make(chan mapResult, workers*2)

	// planErrCh carries the single planner-side error (or nil) back to this
	// goroutine; a shared variable written by the planner goroutine and read
	// here without synchronization would be a data race (spec §7).
	planErrCh := make(chan error, 1)
	if j.fileSrc != nil {
		length, lerr := j.fileSrc.Length()
		if lerr != nil {
			log.Error.Printf("engine: job %s: %v", j.Path, lerr)
			j.errOnce.Set(lerr)
			close(descCh)
			planErrCh <- nil
		} else {
			descs := filePlan(length, cfg)
			go func() {
				defer close(descCh)
				for _, d := range descs {
					if j.cancel.Cancelled() {
						return
					}
					descCh <- d
				}
			}()
			planErrCh <- nil
		}
	} else {
		go func() {
			planErrCh <- streamPlan(j.streamSrc, cfg, descCh, j.cancel.Cancelled)
		}()
	}

	workerErrCh := make(chan error, 1)
	go func() {
		workerErrCh <- runWorkers(workers, descCh, j.fileSrc, cfg, strategy, j.cancel, &j.byteCount, resCh)
		close(resCh)
	}()

	jn := newJoiner(cfg.JoinMode, strategy)
	for r := range resCh {
		if r.err != nil {
			log.Error.Printf("engine: job %s: worker error: %v", j.Path, r.err)
			j.errOnce.Set(r.err)
			j.cancel.Cancel()
			continue
		}
		jn.offer(r.res)
		atomic.AddInt64(&j.progress, 1)
	}

	if werr := <-workerErrCh; werr != nil {
		log.Error.Printf("engine: job %s: worker pool error: %v", j.Path, werr)
		j.errOnce.Set(werr)
	}
	if planErr := <-planErrCh; planErr != nil {
		log.Error.Printf("engine: job %s: planner error: %v", j.Path, planErr)
		j.errOnce.Set(planErr)
		j.cancel.Cancel()
	}
	if j.streamCloser != nil {
		if cerr := j.streamCloser(); cerr != nil {
			log.Error.Printf("engine: job %s: close error: %v", j.Path, cerr)
			j.errOnce.Set(cerr)
		}
	}

	if j.errOnce.Err() == nil && !j.cancel.Cancelled() {
		if ferr := strategy.Finish(); ferr != nil {
			log.Error.Printf("engine: job %s: finish error: %v", j.Path, ferr)
			j.errOnce.Set(ferr)
		}
	}

	log.Debug.Printf("engine: job %s done: byte_count=%d progress=%d cancelled=%t err=%v",
		j.Path, atomic.LoadInt64(&j.byteCount), atomic.LoadInt64(&j.progress), j.cancel.Cancelled(), j.errOnce.Err())
}
