package engine

// Result is a per-partition result record. Every specialization's result
// type embeds ResultHeader so it carries at least {id, cycle} (spec §3).
type Result interface {
	PartitionID() int
}

// ResultHeader is embedded by specialization result types to satisfy
// Result. Cycle is reserved for a future exponential-reduce join
// discipline (spec §3, §9) and is always 0 under the disciplines this
// engine implements.
type ResultHeader struct {
	ID    int
	Cycle int
}

// PartitionID implements Result.
func (h ResultHeader) PartitionID() int { return h.ID }

// Strategy supplies the per-partition computation and, for the Sequential
// discipline, the fold. Finish runs once after all partitions have been
// processed and the job has not been cancelled (spec §4.4).
//
// Map must not block indefinitely and must tolerate seeing the same bytes
// twice (the overlap region, spec §4.3); dedup where applicable is the
// Strategy's responsibility.
type Strategy interface {
	// Map computes the result for one partition. payload holds exactly
	// the bytes of the partition (already read from file or already
	// buffered from the stream); startOffset is its absolute position in
	// the logical source.
	Map(id int, startOffset int64, payload []byte) (Result, error)
	// Join folds next into prior under the Sequential discipline. It is
	// also called once as Join(r0, r0) to seed the accumulator (spec
	// §4.4). Unused under DiscNone.
	Join(prior, next Result) Result
	// Finish runs once after the job completes successfully (not on
	// cancellation or error) for final post-processing such as dedup or
	// sort-by-offset (spec §4.4).
	Finish() error
}

// StrategyFactory constructs a Strategy for one run of a Job. cancel is
// the handle the Strategy may use to raise cancellation on a fatal
// per-partition condition (e.g. the Duplicate Checker's mismatch
// short-circuit, spec §4.8); it is the only channel back into the engine
// a Strategy is given (spec §9).
type StrategyFactory func(cancel *Cancellation) Strategy
