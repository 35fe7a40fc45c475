// Package rtpaudio implements audio.PacketParser for RTP-framed PCM,
// decoding the wire header with pion/rtp and interpreting the payload as
// interleaved signed 16-bit little-endian samples.
package rtpaudio

import (
	"encoding/binary"

	"github.com/pion/rtp"

	"github.com/netsound/netsound/internal/audio"
)

// Parser decodes RTP packets carrying linear PCM into audio.Packet
// records. One Parser is typically attached per local port via
// SessionManager.AddPort.
type Parser struct {
	rate     uint32
	channels audio.ChannelMask
	composer audio.SampleBufferComposer
}

// NewParser creates a parser for a stream known to carry the given sample
// rate and channel mask, using composer to allocate each packet's sample
// storage.
func NewParser(rate uint32, channels audio.ChannelMask, composer audio.SampleBufferComposer) *Parser {
	return &Parser{rate: rate, channels: channels, composer: composer}
}

// Parse implements audio.PacketParser. It rejects payloads that fail RTP
// unmarshaling or whose PCM payload is not an exact multiple of the
// channel count's sample width.
func (p *Parser) Parse(payload []byte) (*audio.Packet, bool) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(payload); err != nil {
		return nil, false
	}

	nch := p.channels.NumChannels()
	if nch == 0 {
		nch = 1
	}
	frameBytes := 2 * nch
	if frameBytes == 0 || len(pkt.Payload)%frameBytes != 0 {
		return nil, false
	}
	numSamples := len(pkt.Payload) / frameBytes
	if numSamples == 0 {
		return nil, false
	}

	buf, ok := p.composer.Compose(numSamples * nch)
	if !ok {
		return nil, false
	}
	samples := buf.Samples()
	for i := 0; i < numSamples*nch; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pkt.Payload[i*2:]))
	}

	return audio.NewPacket(
		audio.SourceID(pkt.SSRC),
		audio.Seqnum(pkt.SequenceNumber),
		audio.Timestamp(pkt.Timestamp),
		pkt.Marker,
		p.rate,
		p.channels,
		numSamples,
		buf,
	), true
}
