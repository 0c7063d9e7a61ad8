package engine

// joiner applies a join discipline over results as they arrive, possibly
// out of order (spec §4.4). It exclusively owns priorResult; no locking is
// needed since only the Manager goroutine calls into it.
type joiner struct {
	discipline JoinDiscipline
	strategy   Strategy

	pending     map[int]Result // out-of-order results awaiting their turn
	nextID      int
	priorResult Result
}

func newJoiner(discipline JoinDiscipline, strategy Strategy) *joiner {
	return &joiner{
		discipline: discipline,
		strategy:   strategy,
		pending:    make(map[int]Result),
	}
}

// offer presents a newly completed Map result to the joiner. Under
// DiscSequential it folds every result whose id is now contiguous with
// nextID; out-of-order results are held in pending until their
// predecessors arrive (spec §4.4 "Out-of-order results are requeued").
// Under DiscNone it is a no-op beyond progress accounting, which the
// caller handles separately.
func (j *joiner) offer(r Result) {
	if j.discipline != DiscSequential {
		return
	}
	j.pending[r.PartitionID()] = r
	for {
		next, ok := j.pending[j.nextID]
		if !ok {
			return
		}
		delete(j.pending, j.nextID)
		if j.nextID == 0 {
			j.priorResult = j.strategy.Join(next, next)
		} else {
			j.priorResult = j.strategy.Join(j.priorResult, next)
		}
		j.nextID++
	}
}
