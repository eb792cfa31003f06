// services/sensors/fifo.go
package sensors

// batchFIFO buffers readings for a sensor with a hardware FIFO. Depth 0
// means the sensor has no FIFO and readings bypass the buffer entirely.
// When the buffer fills, the oldest reading is dropped, mirroring how the
// hardware overwrites its ring.
type batchFIFO struct {
	depth   int
	reserve int
	buf     []Reading
	dropped int
}

func newBatchFIFO(depth, reserve int) *batchFIFO {
	return &batchFIFO{depth: depth, reserve: reserve}
}

// Direct reports whether readings skip batching.
func (f *batchFIFO) Direct() bool { return f.depth == 0 }

// Push buffers one reading, evicting the oldest on overflow.
func (f *batchFIFO) Push(r Reading) {
	if f.Direct() {
		return
	}
	if len(f.buf) >= f.depth {
		copy(f.buf, f.buf[1:])
		f.buf = f.buf[:len(f.buf)-1]
		f.dropped++
	}
	f.buf = append(f.buf, r)
}

// Full reports whether the next Push would evict. The reserved slots are the
// sensor's guaranteed share of the shared hardware FIFO; the watermark sits
// at depth minus reserve so a flush happens before reserved space is eaten.
func (f *batchFIFO) Full() bool {
	if f.Direct() {
		return false
	}
	watermark := f.depth - f.reserve
	if watermark < 1 {
		watermark = 1
	}
	return len(f.buf) >= watermark
}

// Flush returns the buffered readings in arrival order and resets the buffer.
func (f *batchFIFO) Flush() []Reading {
	if len(f.buf) == 0 {
		return nil
	}
	out := f.buf
	f.buf = nil
	return out
}

// Dropped returns the number of readings evicted since creation.
func (f *batchFIFO) Dropped() int { return f.dropped }

func (f *batchFIFO) Len() int { return len(f.buf) }
