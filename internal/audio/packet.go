package audio

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// SamplePayload is the opaque, ref-counted sample storage backing a Packet.
// Samples are interleaved in ascending-channel-index order for the packet's
// channel mask. Implementations are produced by a SampleBufferComposer and
// returned to it when the last reference is released.
type SamplePayload interface {
	// Samples returns the interleaved sample storage. Length is
	// numSamples * channelMask.NumChannels().
	Samples() []int16
	// release returns the payload to its owning composer. Called once,
	// when a Packet's reference count drops to zero.
	release()
}

// Packet is an immutable, reference-counted audio record: the unit the
// receive pipeline stores, orders, and renders. Packets are produced by a
// PacketParser attached to a port and shared between the parser, a
// session's PacketStore, and the ChannelMuxer during rendering.
type Packet struct {
	Source    SourceID
	Seq       Seqnum
	Timestamp Timestamp
	Marker    bool
	// Rate is timestamp units per second; 0 means the timestamp is
	// meaningless for this packet.
	Rate uint32
	// Channels is the bitmask of channel indices carried by this packet.
	Channels ChannelMask
	// NumSamples is the number of samples per channel in this packet.
	NumSamples int

	payload SamplePayload
	refs    atomic.Int32
}

// NewPacket builds a packet over the given payload with an initial
// reference count of one. The caller owns the returned reference and must
// Release it.
func NewPacket(source SourceID, seq Seqnum, ts Timestamp, marker bool, rate uint32, channels ChannelMask, numSamples int, payload SamplePayload) *Packet {
	p := &Packet{
		Source:     source,
		Seq:        seq,
		Timestamp:  ts,
		Marker:     marker,
		Rate:       rate,
		Channels:   channels,
		NumSamples: numSamples,
		payload:    payload,
	}
	p.refs.Store(1)
	return p
}

// Retain adds a reference and returns the packet, for callers handing a
// packet to more than one owner (e.g. a session exposing it to the muxer
// during render while it is still stored).
func (p *Packet) Retain() *Packet {
	p.refs.Add(1)
	return p
}

// Release drops a reference. When the last reference is released, the
// backing payload is returned to its composer.
func (p *Packet) Release() {
	if p.refs.Add(-1) == 0 && p.payload != nil {
		p.payload.release()
	}
}

// RangeEnd returns the modular timestamp one past the last sample this
// packet carries.
func (p *Packet) RangeEnd() Timestamp {
	return p.Timestamp + Timestamp(p.NumSamples)
}

// Covers reports whether this packet's sample range contains timestamp t,
// using wrap-aware comparison.
func (p *Packet) Covers(t Timestamp) bool {
	return !TimeBefore(t, p.Timestamp) && TimeBefore(t, p.RangeEnd())
}

// ReadSamples copies up to n samples of channel ch starting at sample
// offset (relative to the packet's own timestamp) into dst, returning the
// number of samples actually copied. If ch is not present in the packet's
// channel mask, it copies zeroes.
func (p *Packet) ReadSamples(ch int, offset, n int, dst []int16) int {
	if n > len(dst) {
		n = len(dst)
	}
	if offset < 0 || offset >= p.NumSamples || n <= 0 {
		return 0
	}
	if n > p.NumSamples-offset {
		n = p.NumSamples - offset
	}
	if !p.Channels.Has(ch) {
		for i := 0; i < n; i++ {
			dst[i] = 0
		}
		return n
	}
	nch := p.Channels.NumChannels()
	chanIdx := channelSlot(p.Channels, ch)
	samples := p.payload.Samples()
	for i := 0; i < n; i++ {
		pos := (offset+i)*nch + chanIdx
		if pos >= len(samples) {
			dst[i] = 0
			continue
		}
		dst[i] = samples[pos]
	}
	return n
}

// channelSlot returns the interleaved slot index of channel ch within mask,
// i.e. how many set channels precede it in ascending order.
func channelSlot(mask ChannelMask, ch int) int {
	slot := 0
	for i := 0; i < ch; i++ {
		if mask&(1<<uint(i)) != 0 {
			slot++
		}
	}
	return slot
}

// LogValue renders the packet as structured log attributes, for Debug-level
// drop/accept logging.
func (p *Packet) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("source", uint64(p.Source)),
		slog.Uint64("seq", uint64(p.Seq)),
		slog.Uint64("timestamp", uint64(p.Timestamp)),
		slog.Int("num_samples", p.NumSamples),
	)
}

func (p *Packet) String() string {
	return fmt.Sprintf("packet(source=%d seq=%d ts=%d samples=%d)", p.Source, p.Seq, p.Timestamp, p.NumSamples)
}

// PacketParser parses a raw datagram payload into a Packet. Implementations
// are attached to ports and are the pluggable boundary for wire formats
// (RTP, or any future framing); see internal/rtpaudio for one concrete
// implementation. Returns ok=false for malformed input.
type PacketParser interface {
	Parse(payload []byte) (pkt *Packet, ok bool)
}
