package engine

import (
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// filePlan enumerates file-mode partition descriptors for a source of the
// given length (spec §4.2 "File mode"). It is a pure function so tests can
// exercise the enumeration invariants directly without standing up a
// Manager.
func filePlan(length int64, cfg Config) []Descriptor {
	step := int64(cfg.step())
	if step <= 0 {
		log.Panicf("engine: non-positive partition step (partition_size=%d overlap=%d)", cfg.PartitionSize, cfg.Overlap)
	}
	var descs []Descriptor
	id := 0
	for offset := int64(0); offset < length; offset += step {
		descs = append(descs, Descriptor{ID: id, StartOffset: offset})
		id++
	}
	log.Debug.Printf("engine: file plan: length=%d partition_size=%d overlap=%d partitions=%d", length, cfg.PartitionSize, cfg.Overlap, len(descs))
	return descs
}

// streamPlan reads src sequentially and sends freshly allocated
// stream-mode descriptors on out (spec §4.2 "Stream mode"). It closes out
// when done (successfully or not) and returns any I/O error, or nil.
//
// out is the same channel the workers drain from; its buffer is the
// pending-descriptor queue, and a full buffer blocks the send, which is
// the planner's back-pressure.
func streamPlan(src SequentialSource, cfg Config, out chan<- Descriptor, cancelled func() bool) error {
	defer close(out)

	partitionSize := cfg.PartitionSize
	overlap := cfg.Overlap
	step := cfg.step()

	carry := make([]byte, overlap)
	if overlap > 0 {
		n, err := readFull(src, carry)
		if err != nil {
			err = errors.Wrapf(err, "engine: stream plan: reading initial overlap of %d bytes", overlap)
			log.Error.Printf("%v", err)
			return err
		}
		carry = carry[:n]
	}

	id := 0
	var pos int64
	for {
		if cancelled() {
			log.Debug.Printf("engine: stream plan: cancelled after %d partitions", id)
			return nil
		}
		buf := make([]byte, partitionSize)
		copy(buf, carry)
		n, err := readFull(src, buf[len(carry):])
		if err != nil {
			err = errors.Wrapf(err, "engine: stream plan: reading partition %d at offset %d", id, pos)
			log.Error.Printf("%v", err)
			return err
		}
		total := len(carry) + n
		buf = buf[:total]
		if total == 0 {
			log.Debug.Printf("engine: stream plan: complete after %d partitions", id)
			return nil
		}
		out <- Descriptor{ID: id, StartOffset: pos, Payload: buf}
		id++
		pos += int64(step)

		short := n < partitionSize-len(carry)
		if overlap > 0 {
			carryStart := total - overlap
			if carryStart < 0 {
				carryStart = 0
			}
			newCarry := make([]byte, total-carryStart)
			copy(newCarry, buf[carryStart:])
			carry = newCarry
		} else {
			carry = carry[:0]
		}
		if short {
			log.Debug.Printf("engine: stream plan: complete after %d partitions", id)
			return nil
		}
	}
}
