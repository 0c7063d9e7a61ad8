package background

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/partio/engine"
	"github.com/grailbio/testutil"
)

type noopStrategy struct{}

func (noopStrategy) Map(id int, startOffset int64, payload []byte) (engine.Result, error) {
	return engine.ResultHeader{ID: id}, nil
}
func (noopStrategy) Join(prior, next engine.Result) engine.Result { return next }
func (noopStrategy) Finish() error                                { return nil }

func noopFactory(*engine.Cancellation) engine.Strategy { return noopStrategy{} }

func writeTemp(t *testing.T, size int) string {
	t.Helper()
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, ioutil.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestGroupWaitAllIndependentOfSchedulingOrder(t *testing.T) {
	cfg := engine.DefaultConfig()
	var jobs []*Job
	for i := 0; i < 5; i++ {
		path := writeTemp(t, engine.MinPartitionSize*(i+1))
		jobs = append(jobs, New(engine.NewFileJob(path, cfg, noopFactory)))
	}
	grp := NewGroup(jobs...)
	grp.StartAll(context.Background())
	require.NoError(t, grp.WaitAll(context.Background()))
	require.NoError(t, grp.AnyError())
	require.False(t, grp.AnyCancelled())
}

func TestJobCancelImmediatelyAfterStart(t *testing.T) {
	path := writeTemp(t, engine.MinPartitionSize*500)
	cfg := engine.DefaultConfig()
	cfg.MaxWorkers = 1
	j := New(engine.NewFileJob(path, cfg, noopFactory))
	j.Start(context.Background())
	j.Cancel()
	require.NoError(t, j.Wait(context.Background(), nil, 0))
	require.True(t, j.Cancelled())
}

func TestWaitInvokesProgressCallback(t *testing.T) {
	path := writeTemp(t, engine.MinPartitionSize*50)
	cfg := engine.DefaultConfig()
	j := New(engine.NewFileJob(path, cfg, noopFactory))
	j.Start(context.Background())

	var calls int
	require.NoError(t, j.Wait(context.Background(), func(byteCount, partitions int64) {
		calls++
	}, 10*time.Millisecond))
	require.GreaterOrEqual(t, calls, 1)
}
