package engine

import (
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
)

// mapResult is what a worker sends back to the Manager for one partition:
// either a Result or a fatal error (spec §4.3).
type mapResult struct {
	id  int
	res Result
	err error
}

// bufPool hands out partition_size scratch buffers for file-mode Map
// calls, reused across partitions on the same goroutine to avoid a fresh
// allocation per partition (spec §9 "Thread-local scratch buffers";
// grounded on the teacher's encoding/bam/pool.go FreePool, here
// specialized to []byte instead of *sam.Record).
type bufPool struct {
	size int
	pool sync.Pool
}

func newBufPool(size int) *bufPool {
	bp := &bufPool{size: size}
	bp.pool.New = func() interface{} {
		b := make([]byte, size)
		return &b
	}
	return bp
}

func (bp *bufPool) get() *[]byte {
	b := bp.pool.Get().(*[]byte)
	if cap(*b) < bp.size {
		*b = make([]byte, bp.size)
	}
	*b = (*b)[:bp.size]
	return b
}

func (bp *bufPool) put(b *[]byte) {
	bp.pool.Put(b)
}

// runWorkers starts exactly workers goroutines via traverse.Each (the
// teacher's pileup/snp/pileup.go dispatch shape), each draining descs
// until it closes. In file mode (fileSrc != nil) each worker opens its own
// RandomAccessSource handle, honoring spec §4.1's "workers may open their
// own handle per partition to avoid contention". Map results and fatal
// errors are sent to results; results is closed by the caller once all
// workers return.
func runWorkers(
	workers int,
	descs <-chan Descriptor,
	fileSrc *FileSource,
	cfg Config,
	strategy Strategy,
	cancel *Cancellation,
	byteCount *int64,
	results chan<- mapResult,
) error {
	var scratch *bufPool
	if fileSrc != nil {
		scratch = newBufPool(cfg.PartitionSize)
	}
	return traverse.Each(workers, func(workerIdx int) error {
		var handle RandomAccessSource
		if fileSrc != nil {
			h, err := fileSrc.Open()
			if err != nil {
				log.Error.Printf("engine: worker %d: %v", workerIdx, err)
				return err
			}
			defer h.Close() // nolint: errcheck
			handle = h
		}
		for d := range descs {
			if cancel.Cancelled() {
				continue
			}
			payload := d.Payload
			if payload == nil {
				buf := scratch.get()
				n, err := handle.ReadAt(*buf, d.StartOffset)
				if err != nil {
					log.Error.Printf("engine: worker %d: partition %d: %v", workerIdx, d.ID, err)
					results <- mapResult{id: d.ID, err: err}
					cancel.Cancel()
					scratch.put(buf)
					continue
				}
				payload = (*buf)[:n]
				atomic.AddInt64(byteCount, int64(n))
				res, err := strategy.Map(d.ID, d.StartOffset, payload)
				scratch.put(buf)
				if err != nil {
					err = errors.Wrapf(err, "engine: worker %d: partition %d: map failed", workerIdx, d.ID)
					log.Error.Printf("%v", err)
					results <- mapResult{id: d.ID, err: err}
					cancel.Cancel()
					continue
				}
				results <- mapResult{id: d.ID, res: res}
				continue
			}
			atomic.AddInt64(byteCount, int64(len(payload)))
			res, err := strategy.Map(d.ID, d.StartOffset, payload)
			if err != nil {
				err = errors.Wrapf(err, "engine: worker %d: partition %d: map failed", workerIdx, d.ID)
				log.Error.Printf("%v", err)
				results <- mapResult{id: d.ID, err: err}
				cancel.Cancel()
				continue
			}
			results <- mapResult{id: d.ID, res: res}
		}
		return nil
	})
}
