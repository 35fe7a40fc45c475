package rtpaudio

import (
	"encoding/binary"
	"testing"

	"github.com/pion/rtp"

	"github.com/netsound/netsound/internal/audio"
)

func encodeRTP(t *testing.T, seq uint16, ts uint32, ssrc uint32, samples []int16) []byte {
	t.Helper()
	payload := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(s))
	}
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestParseMono(t *testing.T) {
	composer := audio.NewPooledSampleComposer(64)
	p := NewParser(8000, audio.ChannelMask(1), composer)

	raw := encodeRTP(t, 5, 100, 0xAABBCCDD, []int16{1, 2, 3, 4})
	pkt, ok := p.Parse(raw)
	if !ok {
		t.Fatal("Parse() returned ok=false")
	}
	defer pkt.Release()

	if pkt.Seq != 5 {
		t.Errorf("Seq = %d, want 5", pkt.Seq)
	}
	if pkt.Timestamp != 100 {
		t.Errorf("Timestamp = %d, want 100", pkt.Timestamp)
	}
	if pkt.Source != 0xAABBCCDD {
		t.Errorf("Source = %x, want aabbccdd", uint32(pkt.Source))
	}
	if pkt.NumSamples != 4 {
		t.Errorf("NumSamples = %d, want 4", pkt.NumSamples)
	}

	dst := make([]int16, 4)
	pkt.ReadSamples(0, 0, 4, dst)
	want := []int16{1, 2, 3, 4}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, dst[i], want[i])
		}
	}
}

func TestParseRejectsMisalignedPayload(t *testing.T) {
	composer := audio.NewPooledSampleComposer(64)
	p := NewParser(8000, audio.ChannelMask(0b11), composer) // stereo, 4 bytes/frame

	raw := encodeRTP(t, 1, 0, 1, []int16{1, 2, 3}) // 6 bytes, not a multiple of 4
	if _, ok := p.Parse(raw); ok {
		t.Fatal("expected Parse() to reject a payload misaligned to the frame size")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	composer := audio.NewPooledSampleComposer(64)
	p := NewParser(8000, audio.ChannelMask(1), composer)

	if _, ok := p.Parse([]byte{0x01, 0x02}); ok {
		t.Fatal("expected Parse() to reject a too-short payload")
	}
}
