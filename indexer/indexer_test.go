package indexer

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/partio/engine"
	"github.com/grailbio/testutil"
)

func buildIndex(t *testing.T, content []byte) *Index {
	t.Helper()
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, ioutil.WriteFile(path, content, 0644))

	cfg := engine.DefaultConfig()
	cfg.JoinMode = engine.DiscSequential
	job := engine.NewFileJob(path, cfg, NewStrategy(cfg.PartitionSize))
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())
	return IndexFromJob(job)
}

func TestSixLineFile(t *testing.T) {
	ix := buildIndex(t, []byte("hello\nworld\n\n\nfoo\nbar\n"))
	require.Equal(t, 6, ix.LineCount())
	require.EqualValues(t, 0, ix.OffsetForLine(1))
}

func TestMissingTerminator(t *testing.T) {
	ix := buildIndex(t, []byte("hello\nworld\n\n\nfoo\nbar"))
	require.Equal(t, 6, ix.LineCount())
	off := ix.OffsetForLine(6)
	require.GreaterOrEqual(t, off, int64(0))
}

func TestEmptyFileLineCountIsZero(t *testing.T) {
	ix := buildIndex(t, []byte{})
	require.Equal(t, 0, ix.LineCount())
	require.EqualValues(t, -1, ix.OffsetForLine(1))
}

func TestRoundTripOffsetToLine(t *testing.T) {
	content := make([]byte, 0, engine.MinPartitionSize*6)
	for i := 0; i < 4000; i++ {
		content = append(content, []byte("the quick brown fox jumps over the lazy dog\n")...)
	}
	ix := buildIndex(t, content)
	n := ix.LineCount()
	require.Greater(t, n, 0)
	for line := 1; line <= n; line += 37 {
		off := ix.OffsetForLine(line)
		require.GreaterOrEqualf(t, off, int64(0), "line %d", line)
		require.Equal(t, line, ix.LineForOffset(off), "round trip for line %d", line)
	}
}

func TestLineForOffsetOutOfRange(t *testing.T) {
	ix := buildIndex(t, []byte("one\ntwo\n"))
	require.Equal(t, -1, ix.LineForOffset(-1))
	require.Equal(t, -1, ix.LineForOffset(int64(1000000)))
}
