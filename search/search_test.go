package search

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/partio/engine"
	"github.com/grailbio/testutil"
)

func runSearch(t *testing.T, content []byte, pattern string, overlap int) *Strategy {
	t.Helper()
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, ioutil.WriteFile(path, content, 0644))

	cfg := engine.DefaultConfig()
	cfg.Overlap = overlap
	cfg.JoinMode = engine.DiscNone

	factory, err := NewStrategy([]string{pattern}, 0, cfg)
	require.NoError(t, err)

	job := engine.NewFileJob(path, cfg, factory)
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())
	return StrategyFromJob(job)
}

// buildBibleLikeText returns a deterministic synthetic corpus containing
// exactly n occurrences of the phrase "son of man" (possibly with
// irregular internal whitespace, matched by `(?i)son\s*of\s*man`), mixed
// with filler verses so the match count isn't simply "count of lines".
func buildBibleLikeText(n int) []byte {
	var buf bytes.Buffer
	rng := rand.New(rand.NewSource(1))
	phrases := []string{"Son of Man", "son  of man", "SON OF MAN", "Son of\tman"}
	written := 0
	verse := 0
	for written < n {
		verse++
		fmt.Fprintf(&buf, "%d And the %s came unto them, ", verse, "word")
		if rng.Intn(3) != 0 {
			fmt.Fprintf(&buf, "and the %s said, ", phrases[written%len(phrases)])
			written++
		} else {
			buf.WriteString("and the people rejoiced, ")
		}
		buf.WriteString("and it was so.\n")
	}
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&buf, "%d In the beginning, filler verse with no match here.\n", verse+i)
	}
	return buf.Bytes()
}

func TestCaseInsensitiveMatchCount(t *testing.T) {
	content := buildBibleLikeText(210)
	st := runSearch(t, content, `(?i)son\s*of\s*man`, 0)
	matches := st.Matches(0)
	require.Len(t, matches, 210)
	for i := 1; i < len(matches); i++ {
		require.Less(t, matches[i-1].StartOffset, matches[i].StartOffset, "offsets strictly ascending")
	}
}

func TestBoundaryMatchDedupedAcrossPartitions(t *testing.T) {
	const partitionSize = 4096
	const overlap = 512
	content := bytes.Repeat([]byte{'x'}, partitionSize*2)
	copy(content[4090:], []byte("unicorn"))

	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, ioutil.WriteFile(path, content, 0644))

	cfg := engine.DefaultConfig()
	cfg.PartitionSize = partitionSize
	cfg.Overlap = overlap
	cfg.JoinMode = engine.DiscNone

	factory, err := NewStrategy([]string{"unicorn"}, 0, cfg)
	require.NoError(t, err)

	job := engine.NewFileJob(path, cfg, factory)
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())

	st := StrategyFromJob(job)
	matches := st.Matches(0)
	require.Len(t, matches, 1)
	require.EqualValues(t, 4090, matches[0].StartOffset)
}

func TestMaxMatchCountCap(t *testing.T) {
	content := bytes.Repeat([]byte("cat\n"), 1000)
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)
	path := filepath.Join(dir, "data.txt")
	require.NoError(t, ioutil.WriteFile(path, content, 0644))

	cfg := engine.DefaultConfig()
	cfg.JoinMode = engine.DiscNone
	factory, err := NewStrategy([]string{"cat"}, 100, cfg)
	require.NoError(t, err)

	job := engine.NewFileJob(path, cfg, factory)
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())

	st := StrategyFromJob(job)
	require.LessOrEqual(t, len(st.Matches(0)), 100)
}

func TestReplaceIdentityIsByteIdentical(t *testing.T) {
	content := []byte("the cat sat on the cat mat near the cat\n")
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, ioutil.WriteFile(in, content, 0644))

	cfg := engine.DefaultConfig()
	factory, err := NewStrategy([]string{"cat"}, 0, cfg)
	require.NoError(t, err)
	job := engine.NewFileJob(in, cfg, factory)
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())
	st := StrategyFromJob(job)

	ctx := context.Background()
	require.NoError(t, Replace(ctx, in, out, st.Matches(0), func(m MatchRecord) string { return m.Value }))

	got, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestReplaceErasesMatches(t *testing.T) {
	content := []byte("abcXdefXghi")
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, ioutil.WriteFile(in, content, 0644))

	cfg := engine.DefaultConfig()
	factory, err := NewStrategy([]string{"X"}, 0, cfg)
	require.NoError(t, err)
	job := engine.NewFileJob(in, cfg, factory)
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())
	st := StrategyFromJob(job)

	require.NoError(t, Replace(context.Background(), in, out, st.Matches(0), func(m MatchRecord) string { return "" }))
	got, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, []byte("abcdefghi"), got)
}
