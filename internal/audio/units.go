// Package audio implements the receive-side pipeline of the netsound audio
// transport: per-source jitter buffers, session lifecycle, channel mixing,
// and output latency shaping.
package audio

import "math/bits"

// Seqnum is a 16-bit modular packet sequence number. Comparisons must use
// SeqBefore rather than ordinary integer comparison, since the value wraps.
type Seqnum uint16

// Timestamp is a 32-bit modular sample-unit timestamp. Comparisons must use
// TimeBefore rather than ordinary integer comparison, since the value wraps.
type Timestamp uint32

// SourceID identifies one remote client's stream, read from the first
// packet accepted from a given remote address.
type SourceID uint32

// SeqBefore reports whether a is before b in wrap-aware modular order,
// using signed difference on the 16-bit width. Never widen then compare.
func SeqBefore(a, b Seqnum) bool {
	return int16(a-b) < 0
}

// TimeBefore reports whether a is before b in wrap-aware modular order,
// using signed difference on the 32-bit width. Never widen then compare.
func TimeBefore(a, b Timestamp) bool {
	return int32(a-b) < 0
}

// ChannelMask is a bitset of channel indices 0..31 present in a packet or
// frame.
type ChannelMask uint32

// NumChannels returns the number of channels set in the mask.
func (m ChannelMask) NumChannels() int {
	return bits.OnesCount32(uint32(m))
}

// Channels returns the set channel indices in ascending order.
func (m ChannelMask) Channels() []int {
	chans := make([]int, 0, m.NumChannels())
	for i := 0; i < 32; i++ {
		if m&(1<<uint(i)) != 0 {
			chans = append(chans, i)
		}
	}
	return chans
}

// Has reports whether channel index i is present in the mask.
func (m ChannelMask) Has(i int) bool {
	if i < 0 || i > 31 {
		return false
	}
	return m&(1<<uint(i)) != 0
}
