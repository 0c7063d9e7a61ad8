package engine

import (
	"runtime"

	"github.com/pkg/errors"
)

// MinPartitionSize is the minimum allowed partition_size (spec §4.2).
const MinPartitionSize = 2048

// JoinDiscipline selects how per-partition Results are combined.
type JoinDiscipline int

const (
	// DiscNone drops per-partition results; the Strategy is responsible
	// for accumulating shared state itself during Map (e.g. a concurrent
	// match queue).
	DiscNone JoinDiscipline = iota
	// DiscSequential folds results strictly in ascending partition-id
	// order via repeated calls to Strategy.Join.
	DiscSequential
	// DiscReduce is reserved for a future pairwise-parallel reduction
	// discipline. It is accepted by Config but rejected at Start time.
	DiscReduce
)

func (d JoinDiscipline) String() string {
	switch d {
	case DiscNone:
		return "none"
	case DiscSequential:
		return "sequential"
	case DiscReduce:
		return "reduce"
	default:
		return "unknown"
	}
}

// BufferMode is a hint to the random-access file source about OS-level
// caching.
type BufferMode int

const (
	// Buffered lets the OS page cache work normally.
	Buffered BufferMode = iota
	// Unbuffered asks the adapter to bypass OS-level caching where the
	// platform supports it. Implementations that cannot honor this fall
	// back to Buffered (spec §6); this module always falls back, since
	// unbuffered-file platform shims are an explicit external
	// collaborator (spec §1), not part of the core.
	Unbuffered
)

// Config holds the per-job options recognized by the engine (spec §6).
type Config struct {
	// PartitionSize is the number of bytes per partition. Clamped to
	// >= MinPartitionSize.
	PartitionSize int
	// Overlap is the number of bytes shared between consecutive
	// partitions. Clamped to [0, PartitionSize/2] and rounded up to the
	// next even value.
	Overlap int
	// MaxWorkers is a hard concurrency cap; 0 means unbounded (in
	// practice, one goroutine per CPU — see workerCount).
	MaxWorkers int
	// JoinMode selects the join discipline.
	JoinMode JoinDiscipline
	// BufferMode is a hint for the random-access file source.
	BufferMode BufferMode
}

// DefaultConfig returns a Config with the spec's minimum partition size,
// no overlap, unbounded workers, and the None join discipline.
func DefaultConfig() Config {
	return Config{
		PartitionSize: MinPartitionSize,
		Overlap:       0,
		MaxWorkers:    0,
		JoinMode:      DiscNone,
		BufferMode:    Buffered,
	}
}

// normalize clamps PartitionSize/Overlap per spec §4.2/§6 and rejects
// configurations this implementation does not support (DiscReduce, spec
// §4.4/§9 Open Question).
func (c Config) normalize() (Config, error) {
	if c.PartitionSize < MinPartitionSize {
		c.PartitionSize = MinPartitionSize
	}
	maxOverlap := c.PartitionSize / 2
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap > maxOverlap {
		c.Overlap = maxOverlap
	}
	if c.Overlap%2 != 0 {
		c.Overlap++
		if c.Overlap > maxOverlap {
			c.Overlap -= 2
		}
	}
	if c.JoinMode == DiscReduce {
		return c, errors.New("engine: join discipline Reduce is reserved and not implemented by this engine")
	}
	if c.MaxWorkers < 0 {
		c.MaxWorkers = 0
	}
	return c, nil
}

// workerCount returns the number of goroutines the Worker Pool should
// start: MaxWorkers if set, otherwise runtime.NumCPU() (spec: "0 means
// unbounded"; this implementation interprets unbounded as one worker per
// core rather than spawning a goroutine per partition).
func (c Config) workerCount() int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	return runtime.NumCPU()
}

// step is the effective distance between partition starts.
func (c Config) step() int {
	return c.PartitionSize - c.Overlap
}
