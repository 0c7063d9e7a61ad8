package engine

// Descriptor is a partition descriptor: a contiguous byte slice of the
// input, identified by a monotonically increasing id.
//
// In file mode Payload is nil; a worker reads its own slice directly from
// the RandomAccessSource at StartOffset. In stream mode Payload holds the
// partition bytes the Planner already read, including the carried-forward
// overlap from the previous partition.
type Descriptor struct {
	ID          int
	StartOffset int64
	Payload     []byte
}

// Len returns the number of valid bytes in a stream-mode descriptor, or 0
// for a file-mode descriptor (whose length is determined by the worker's
// read).
func (d Descriptor) Len() int {
	return len(d.Payload)
}
