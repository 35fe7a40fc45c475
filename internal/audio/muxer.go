package audio

import "sync"

// ChannelMuxer reads from the set of attached per-session renderers and
// assembles an interleaved multi-channel output frame, mixing overlapping
// channels with equal weight and clamping on saturation. Attaching and
// detaching renderers is exclusive with reading: a single mutex guards the
// renderer set, since attaches happen from SessionManager.route and
// detaches from SessionManager.update, both normally on the tick thread,
// but the lock makes the muxer correct even if that ever changes.
type ChannelMuxer struct {
	mask ChannelMask
	nch  int

	mu        sync.Mutex
	renderers map[*Session]Renderer
	scratch   []int16
}

// NewChannelMuxer creates a muxer producing frames over the given output
// channel mask.
func NewChannelMuxer(mask ChannelMask) *ChannelMuxer {
	return &ChannelMuxer{
		mask:      mask,
		nch:       mask.NumChannels(),
		renderers: make(map[*Session]Renderer),
	}
}

// Attach registers a renderer to be mixed into future frames. Keyed by the
// owning session so Detach can find it without a separate handle type.
func (m *ChannelMuxer) Attach(key *Session, r Renderer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renderers[key] = r
}

// Detach removes a previously attached renderer.
func (m *ChannelMuxer) Detach(key *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.renderers, key)
}

// Count returns the number of attached renderers.
func (m *ChannelMuxer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.renderers)
}

// Read zeroes frame and fills it with n samples per output channel, mixing
// every attached renderer's contribution by summing per sample and
// clamping to int16 range on overflow.
func (m *ChannelMuxer) Read(frame []int16, n int) {
	for i := range frame {
		frame[i] = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	outChannels := m.mask.Channels()
	outSlot := make(map[int]int, len(outChannels))
	for i, ch := range outChannels {
		outSlot[ch] = i
	}

	var acc []int32
	for _, r := range m.renderers {
		rmask := r.RenderChannels()
		rnch := rmask.NumChannels()
		if rnch == 0 {
			continue
		}
		need := n * rnch
		if cap(m.scratch) < need {
			m.scratch = make([]int16, need)
		}
		scratch := m.scratch[:need]
		r.Render(scratch, n)

		if acc == nil {
			acc = make([]int32, n*m.nch)
		}
		for _, ch := range rmask.Channels() {
			outIdx, ok := outSlot[ch]
			if !ok {
				continue
			}
			inSlot := channelSlot(rmask, ch)
			for i := 0; i < n; i++ {
				acc[i*m.nch+outIdx] += int32(scratch[i*rnch+inSlot])
			}
		}
	}

	for i := range acc {
		if i >= len(frame) {
			break
		}
		frame[i] = clampSample(acc[i])
	}
}

// clampSample saturates a mixed 32-bit accumulator to the representable
// int16 range.
func clampSample(v int32) int16 {
	const maxS = int32(1<<15 - 1)
	const minS = -int32(1 << 15)
	if v > maxS {
		return int16(maxS)
	}
	if v < minS {
		return int16(minS)
	}
	return int16(v)
}
