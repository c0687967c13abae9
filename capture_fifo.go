// capture_fifo.go - Wait-free SPSC ring bridging the capture callback into the block loop

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionRack
License: GPLv3 or later
*/

package rack

import "sync/atomic"

// CaptureFifo is a fixed-capacity single-producer/single-consumer ring of
// float32 samples. The producer is an externally scheduled hardware callback
// and must never block: a batch that does not fit is dropped whole and the
// overflow counter bumped; a partial write is never observable. The consumer
// is the block loop and likewise never waits: a short read is padded with
// silence and counted as an underrun.
//
// Write and Read are wait-free. Exactly one goroutine may call Write and
// exactly one may call Read; the counters may be read from anywhere.
type CaptureFifo struct {
	buf       []float32
	mask      uint64
	writePos  atomic.Uint64 // Total samples ever written (producer-owned)
	readPos   atomic.Uint64 // Total samples ever consumed (consumer-owned)
	overflows atomic.Uint64
	underruns atomic.Uint64
}

// NewCaptureFifo creates a ring holding at least capacity samples, rounded
// up to a power of two.
func NewCaptureFifo(capacity int) *CaptureFifo {
	if capacity < 2 {
		capacity = 2
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &CaptureFifo{
		buf:  make([]float32, size),
		mask: uint64(size - 1),
	}
}

// Capacity returns the ring's sample capacity.
func (f *CaptureFifo) Capacity() int { return len(f.buf) }

// Available returns the number of samples ready to read.
func (f *CaptureFifo) Available() int {
	return int(f.writePos.Load() - f.readPos.Load())
}

// Write copies the whole batch into the ring, or none of it. Returns false
// (and bumps the overflow counter) when the batch does not fit. Producer
// side only.
func (f *CaptureFifo) Write(samples []float32) bool {
	w := f.writePos.Load()
	r := f.readPos.Load()
	free := uint64(len(f.buf)) - (w - r)
	if uint64(len(samples)) > free {
		f.overflows.Add(1)
		return false
	}
	for i, s := range samples {
		f.buf[(w+uint64(i))&f.mask] = s
	}
	// Publish after the data is in place; the consumer's load of writePos
	// acquires everything stored above.
	f.writePos.Store(w + uint64(len(samples)))
	return true
}

// Read fills dst with as many buffered samples as are available and silence
// for the rest, returning the number of real samples delivered. A short
// read bumps the underrun counter. Consumer side only.
func (f *CaptureFifo) Read(dst []float32) int {
	w := f.writePos.Load()
	r := f.readPos.Load()
	avail := int(w - r)
	n := len(dst)
	if avail < n {
		n = avail
	}
	for i := 0; i < n; i++ {
		dst[i] = f.buf[(r+uint64(i))&f.mask]
	}
	f.readPos.Store(r + uint64(n))
	if n < len(dst) {
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		f.underruns.Add(1)
	}
	return n
}

// Overflows returns the count of dropped producer batches.
func (f *CaptureFifo) Overflows() uint64 { return f.overflows.Load() }

// Underruns returns the count of silence-padded consumer reads.
func (f *CaptureFifo) Underruns() uint64 { return f.underruns.Load() }
