package dupcheck

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/partio/engine"
	"github.com/grailbio/testutil"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, content, 0644))
	return path
}

func TestIdenticalFiles(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)

	content := make([]byte, engine.MinPartitionSize*4+123)
	for i := range content {
		content[i] = byte(i * 7)
	}
	a := writeFile(t, dir, "a.bin", content)
	b := writeFile(t, dir, "b.bin", content)

	job, err := NewJob(Config{PathA: a, PathB: b})
	require.NoError(t, err)
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())
	require.False(t, job.Cancelled())
	require.True(t, Identical(job))
	require.EqualValues(t, len(content), job.ByteCount())
}

func TestSingleByteDifferenceAtEnd(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)

	content := make([]byte, engine.MinPartitionSize*4)
	other := make([]byte, len(content))
	copy(other, content)
	other[len(other)-1] ^= 0xFF

	a := writeFile(t, dir, "a.bin", content)
	b := writeFile(t, dir, "b.bin", other)

	job, err := NewJob(Config{PathA: a, PathB: b})
	require.NoError(t, err)
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())
	require.False(t, Identical(job))
}

func TestLengthMismatchShortCircuits(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	t.Cleanup(cleanup)

	a := writeFile(t, dir, "a.bin", make([]byte, engine.MinPartitionSize))
	b := writeFile(t, dir, "b.bin", make([]byte, engine.MinPartitionSize*2))

	job, err := NewJob(Config{PathA: a, PathB: b})
	require.NoError(t, err)
	job.Start(context.Background())
	require.NoError(t, job.Wait(context.Background()))
	require.NoError(t, job.Err())
	require.False(t, Identical(job))
	require.True(t, job.Cancelled())
}
