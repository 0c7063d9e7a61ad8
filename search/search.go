// Package search implements the Regex Searcher specialization: locating
// one or more regular expressions across a partitioned byte source, with
// match/group/capture metadata and a streaming Replace (spec §4.7, §7.2).
package search

import (
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/grailbio/partio/engine"
)

// Capture is a single capturing-group occurrence within a Group.
type Capture struct {
	StartOffset int64
	Value       string
}

// Group is a named or positional capturing group within a Match.
type Group struct {
	StartOffset int64
	Name        string
	Value       string
	Captures    []Capture
}

// MatchRecord is one regex match, offsets absolute in the logical source
// (spec §3 "Match record").
type MatchRecord struct {
	StartOffset int64
	Name        string
	Value       string
	Groups      []Group
	RegexIndex  int
}

// perRegex is one regex's concurrent match queue: a mutex-guarded slice
// fed from every worker's Map call, drained and deduped by Finish (spec
// §4.7). The enqueued counter is checked lock-free before acquiring mu so
// workers racing past the cap only pay for a mutex when they might
// actually append.
type perRegex struct {
	re       *regexp.Regexp
	mu       sync.Mutex
	queue    []MatchRecord
	enqueued int64 // atomic, approximate (spec §4.7 "approximate cap, race allowed")
	maxCount int64
}

// Strategy runs under join discipline None: Map appends matches directly
// to per-regex mutex-guarded queues; Finish drains, dedups by start_offset
// (keep first), and sorts (spec §4.7).
type Strategy struct {
	regexes       []*perRegex
	overlap       int
	partitionSize int

	byteCount int64 // atomic, raw sum of Map payload lengths

	results [][]MatchRecord // final, populated by Finish
}

// NewStrategy builds a Regex Searcher over patterns, each matched
// case-sensitively unless the pattern itself embeds `(?i)` (Go regexp
// convention; the spec's case-insensitive scenario uses this directly).
// maxMatchCount (0 = no cap) caps how many records each regex's queue
// accepts; Finish does not trim, and the count after dedup can be lower
// than the cap when overlap duplicates were among the accepted records.
func NewStrategy(patterns []string, maxMatchCount int, cfg engine.Config) (engine.StrategyFactory, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "search: compiling pattern %d (%q)", i, p)
		}
		compiled[i] = re
	}
	return func(cancel *engine.Cancellation) engine.Strategy {
		regexes := make([]*perRegex, len(compiled))
		for i, re := range compiled {
			regexes[i] = &perRegex{
				re:       re,
				maxCount: int64(maxMatchCount),
			}
		}
		return &Strategy{
			regexes:       regexes,
			overlap:       cfg.Overlap,
			partitionSize: cfg.PartitionSize,
		}
	}, nil
}

// searchResult is the per-partition placeholder Result; None discipline
// never folds these, so it carries nothing beyond the partition id.
type searchResult struct {
	engine.ResultHeader
}

// Map runs every configured regex over payload and enqueues a MatchRecord
// per match, adjusted to the partition's absolute start_offset (spec
// §4.7). Enqueuing stops once a regex's cap is reached: the atomic
// counter may run past the cap under a race, but a record is appended only
// when its increment stayed within the cap.
func (s *Strategy) Map(id int, startOffset int64, payload []byte) (engine.Result, error) {
	atomic.AddInt64(&s.byteCount, int64(len(payload)))
	for ri, pr := range s.regexes {
		if pr.maxCount > 0 && atomic.LoadInt64(&pr.enqueued) >= pr.maxCount {
			continue
		}
		locs := pr.re.FindAllSubmatchIndex(payload, -1)
		for _, loc := range locs {
			if pr.maxCount > 0 && atomic.AddInt64(&pr.enqueued, 1) > pr.maxCount {
				continue
			}
			m := toMatchRecord(pr.re, payload, loc, startOffset)
			m.RegexIndex = ri
			pr.mu.Lock()
			pr.queue = append(pr.queue, m)
			pr.mu.Unlock()
		}
	}
	return searchResult{engine.ResultHeader{ID: id}}, nil
}

// Join is unused under discipline None.
func (s *Strategy) Join(prior, next engine.Result) engine.Result { return next }

// Finish drains every regex's queue, dedups by start_offset (keep first),
// and sorts ascending (spec §4.7).
func (s *Strategy) Finish() error {
	s.results = make([][]MatchRecord, len(s.regexes))
	for i, pr := range s.regexes {
		seen := make(map[int64]bool, len(pr.queue))
		var out []MatchRecord
		for _, m := range pr.queue {
			if seen[m.StartOffset] {
				continue
			}
			seen[m.StartOffset] = true
			out = append(out, m)
		}
		sort.Slice(out, func(a, b int) bool { return out[a].StartOffset < out[b].StartOffset })
		s.results[i] = out
	}
	return nil
}

// Matches returns the deduped, sorted matches for regex index i. Only
// meaningful after the owning job completes successfully.
func (s *Strategy) Matches(i int) []MatchRecord {
	if i < 0 || i >= len(s.results) {
		return nil
	}
	return s.results[i]
}

// ByteCount returns the engine's raw byte count adjusted to avoid
// double-counting the overlap region shared between consecutive
// partitions (spec §4.7 "adjusts byte_count to avoid double-counting the
// overlap"). It is only accurate for a single, complete file-mode run.
func (s *Strategy) ByteCount(partitionCount int) int64 {
	raw := atomic.LoadInt64(&s.byteCount)
	if partitionCount <= 1 || s.overlap == 0 {
		return raw
	}
	return raw - int64(s.overlap)*int64(partitionCount-1)
}

func toMatchRecord(re *regexp.Regexp, payload []byte, loc []int, startOffset int64) MatchRecord {
	names := re.SubexpNames()
	m := MatchRecord{
		StartOffset: startOffset + int64(loc[0]),
		Value:       string(payload[loc[0]:loc[1]]),
	}
	for g := 1; g*2 < len(loc); g++ {
		gs, ge := loc[g*2], loc[g*2+1]
		grp := Group{}
		if g < len(names) {
			grp.Name = names[g]
		}
		if gs < 0 {
			continue
		}
		grp.StartOffset = startOffset + int64(gs)
		grp.Value = string(payload[gs:ge])
		m.Groups = append(m.Groups, grp)
	}
	return m
}

// StrategyFromJob retrieves the Strategy out of a completed job, for
// result access after Wait returns.
func StrategyFromJob(j *engine.Job) *Strategy {
	st, _ := j.Strategy().(*Strategy)
	return st
}
