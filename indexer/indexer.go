// Package indexer implements the Line Indexer specialization: a
// bidirectional mapping between line numbers and byte offsets built by
// running the engine's Sequential join discipline over a file (spec §4.6,
// §7.1).
package indexer

import (
	"bytes"
	"sort"

	"github.com/grailbio/partio/engine"
)

// LineChunk is the per-partition record the Sequential join folds over.
// Fields mirror the spec's line-chunk record; payload is retained so
// OffsetForLine/LineForOffset can scan actual bytes rather than
// reconstructing them, matching the spec's literal "scan its bytes"
// wording.
type LineChunk struct {
	engine.ResultHeader

	StartOffset        int64
	ByteCount          int
	NewlineCount       int
	EndsWithNewline    bool
	FirstNewlineOffset int64 // absolute offset of the chunk's first newline, -1 if none
	IsFinal            bool
	StartLine          int
	EndLine            int

	payload []byte
	prev    *LineChunk
}

// Index is the completed Line Indexer result: an ordered set of chunks
// queryable by line number or byte offset.
type Index struct {
	chunks []*LineChunk
}

// NewStrategy returns a StrategyFactory for use with engine.NewFileJob,
// configured with the same partition_size the job's Config carries (Map
// needs it to detect the final partition, spec §4.6).
func NewStrategy(partitionSize int) engine.StrategyFactory {
	return func(cancel *engine.Cancellation) engine.Strategy {
		return &strategy{partitionSize: partitionSize, index: &Index{}}
	}
}

type strategy struct {
	partitionSize int
	index         *Index
}

// Map implements engine.Strategy (spec §4.6): count newlines, detect
// end-of-partition newline, locate the first newline, and flag the final
// partition by its short read.
func (s *strategy) Map(id int, startOffset int64, payload []byte) (engine.Result, error) {
	c := &LineChunk{
		ResultHeader:       engine.ResultHeader{ID: id},
		StartOffset:        startOffset,
		ByteCount:          len(payload),
		NewlineCount:       bytes.Count(payload, []byte{'\n'}),
		EndsWithNewline:    len(payload) > 0 && payload[len(payload)-1] == '\n',
		FirstNewlineOffset: -1,
		IsFinal:            len(payload) < s.partitionSize,
		// The engine reuses file-mode payload buffers after Map returns, so
		// keep a private copy for the later scans.
		payload: append([]byte(nil), payload...),
	}
	if idx := bytes.IndexByte(payload, '\n'); idx >= 0 {
		c.FirstNewlineOffset = startOffset + int64(idx)
	}
	return c, nil
}

// Join folds next into prior under the Sequential discipline (spec §4.6).
// When prior and next are the same chunk (the id-0 seed call), EndLine's
// zero value makes the formula below degenerate correctly into
// StartLine == 1.
func (s *strategy) Join(prior, next engine.Result) engine.Result {
	a := prior.(*LineChunk)
	b := next.(*LineChunk)
	if a != b {
		b.prev = a
	}
	b.StartLine = a.EndLine + 1
	b.EndLine = a.EndLine + b.NewlineCount
	if b.IsFinal && !b.EndsWithNewline && b.ByteCount > 0 {
		b.EndLine++
	}
	s.index.chunks = append(s.index.chunks, b)
	return b
}

// Finish sorts the chunks by partition id. Join already appends them in
// id order, so this leaves the order unchanged.
func (s *strategy) Finish() error {
	sort.Slice(s.index.chunks, func(i, j int) bool {
		return s.index.chunks[i].PartitionID() < s.index.chunks[j].PartitionID()
	})
	return nil
}

// Index returns the built Index. Only meaningful after the owning job
// reaches a successful terminal state.
func (s *strategy) Index() *Index { return s.index }

// IndexFromJob retrieves the Index out of a completed job's Strategy.
func IndexFromJob(j *engine.Job) *Index {
	st, ok := j.Strategy().(*strategy)
	if !ok {
		return nil
	}
	return st.Index()
}

// LineCount returns the total number of lines, 0 for an empty file (spec
// §9/§10 Open Question: empty file convention).
func (ix *Index) LineCount() int {
	if len(ix.chunks) == 0 {
		return 0
	}
	return ix.chunks[len(ix.chunks)-1].EndLine
}

// locateChunk finds the chunk whose [StartLine, EndLine] range contains n,
// starting from the spec's guess-index heuristic and walking linearly
// (spec §4.6). Degenerate chunks that own no line (StartLine > EndLine,
// e.g. a partition wholly inside one very long line) are skipped
// transparently since n never falls in their empty range.
func (ix *Index) locateChunk(n int) *LineChunk {
	if len(ix.chunks) == 0 {
		return nil
	}
	lineCount := ix.LineCount()
	chunkCount := len(ix.chunks)
	idx := 0
	if lineCount >= chunkCount && chunkCount > 0 {
		idx = n / (lineCount / chunkCount)
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= chunkCount {
		idx = chunkCount - 1
	}
	for idx > 0 && n < ix.chunks[idx].StartLine {
		idx--
	}
	for idx < chunkCount-1 && n > ix.chunks[idx].EndLine {
		idx++
	}
	c := ix.chunks[idx]
	if n < c.StartLine || n > c.EndLine {
		return nil
	}
	return c
}

// OffsetForLine returns the absolute byte offset where line n begins, or
// -1 if n is out of range (spec §4.6). Line 1 begins at offset 0. When a
// line's true start lies in an earlier chunk than the one its number
// first associates with (the chunk boundary fell mid-line, i.e. the prior
// chunk did not end on a newline), this walks back to the chunk that
// actually contains the line's first byte before scanning forward.
func (ix *Index) OffsetForLine(n int) int64 {
	if n < 1 || n > ix.LineCount() {
		return -1
	}
	c := ix.locateChunk(n)
	if c == nil {
		return -1
	}
	for c.StartLine == n && c.prev != nil && !c.prev.EndsWithNewline {
		c = c.prev
	}
	k := n - c.StartLine
	if k == 0 {
		return c.StartOffset
	}
	count := 0
	for i, b := range c.payload {
		if b == '\n' {
			count++
			if count == k {
				return c.StartOffset + int64(i+1)
			}
		}
	}
	return -1
}

// LineForOffset returns the 1-based line number containing byte offset p,
// or -1 if p is out of range (spec §4.6).
func (ix *Index) LineForOffset(p int64) int {
	if len(ix.chunks) == 0 || p < 0 {
		return -1
	}
	last := ix.chunks[len(ix.chunks)-1]
	if p >= last.StartOffset+int64(last.ByteCount) {
		return -1
	}
	partitionSize := int64(1)
	if first := ix.chunks[0]; first.ByteCount > 0 {
		partitionSize = int64(first.ByteCount)
	}
	idx := int(p / partitionSize)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ix.chunks) {
		idx = len(ix.chunks) - 1
	}
	for idx > 0 && p < ix.chunks[idx].StartOffset {
		idx--
	}
	for idx < len(ix.chunks)-1 && p >= ix.chunks[idx].StartOffset+int64(ix.chunks[idx].ByteCount) {
		idx++
	}
	c := ix.chunks[idx]
	rel := int(p - c.StartOffset)
	if rel < 0 || rel > len(c.payload) {
		return -1
	}
	newlines := bytes.Count(c.payload[:rel], []byte{'\n'})
	return c.StartLine + newlines
}
