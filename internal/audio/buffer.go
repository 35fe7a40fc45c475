package audio

import "sync"

// ByteBufferComposer allocates reference-counted byte buffers for incoming
// datagram payloads. It is a required collaborator; a nil composer is a
// fatal config error (New panics on construction).
type ByteBufferComposer interface {
	Compose(size int) ([]byte, bool)
}

// SampleBufferComposer allocates reference-counted SamplePayload buffers
// for packets and output frames. It is a required collaborator; a nil
// composer is a fatal config error.
type SampleBufferComposer interface {
	Compose(numSamples int) (SamplePayload, bool)
}

// pooledPayload is a SamplePayload backed by a sync.Pool, returned to the
// pool when its last Packet reference is released. samples is the full
// backing buffer; active is the length requested by the most recent
// Compose call, and is what Samples exposes.
type pooledPayload struct {
	samples []int16
	active  int
	pool    *sync.Pool
}

func (p *pooledPayload) Samples() []int16 { return p.samples[:p.active] }

func (p *pooledPayload) release() {
	p.pool.Put(p)
}

// PooledSampleComposer is a SampleBufferComposer backed by a sync.Pool,
// sized for a fixed maximum sample count per buffer (numSamples *
// n_channels for the largest packet or frame this pipeline will see).
type PooledSampleComposer struct {
	maxSize int
	pool    *sync.Pool
}

// NewPooledSampleComposer creates a composer whose buffers hold up to
// maxSize int16 samples. Requests for more than maxSize samples fail.
func NewPooledSampleComposer(maxSize int) *PooledSampleComposer {
	c := &PooledSampleComposer{maxSize: maxSize}
	c.pool = &sync.Pool{
		New: func() any {
			return &pooledPayload{samples: make([]int16, maxSize)}
		},
	}
	return c
}

// Compose returns a SamplePayload with at least numSamples slots, or
// ok=false if numSamples exceeds the composer's configured maximum.
func (c *PooledSampleComposer) Compose(numSamples int) (SamplePayload, bool) {
	if numSamples < 0 || numSamples > c.maxSize {
		return nil, false
	}
	v := c.pool.Get().(*pooledPayload)
	v.pool = c.pool
	v.active = numSamples
	for i := 0; i < numSamples; i++ {
		v.samples[i] = 0
	}
	return v, true
}

// PooledByteComposer is a ByteBufferComposer backed by a sync.Pool, sized
// for a fixed maximum byte length (typically the MTU of the transport).
type PooledByteComposer struct {
	maxSize int
	pool    sync.Pool
}

// NewPooledByteComposer creates a composer whose buffers hold up to
// maxSize bytes.
func NewPooledByteComposer(maxSize int) *PooledByteComposer {
	c := &PooledByteComposer{maxSize: maxSize}
	c.pool.New = func() any {
		return make([]byte, maxSize)
	}
	return c
}

// Compose returns a byte buffer with at least size bytes, or ok=false if
// size exceeds the composer's configured maximum.
func (c *PooledByteComposer) Compose(size int) ([]byte, bool) {
	if size < 0 || size > c.maxSize {
		return nil, false
	}
	buf := c.pool.Get().([]byte)
	return buf[:size], true
}
