package audio

import "testing"

func mkPacket(t *testing.T, composer *PooledSampleComposer, seq Seqnum, ts Timestamp, channels ChannelMask, values []int16) *Packet {
	t.Helper()
	nch := channels.NumChannels()
	numSamples := len(values) / nch
	payload, ok := composer.Compose(len(values))
	if !ok {
		t.Fatalf("composer.Compose failed")
	}
	copy(payload.Samples(), values)
	return NewPacket(1, seq, ts, false, 8000, channels, numSamples, payload)
}

func TestPacketCoversAndReadSamples(t *testing.T) {
	composer := NewPooledSampleComposer(64)
	pkt := mkPacket(t, composer, 0, 100, ChannelMask(1), []int16{10, 20, 30, 40})

	if !pkt.Covers(100) || !pkt.Covers(103) {
		t.Error("packet should cover its own timestamp range")
	}
	if pkt.Covers(99) || pkt.Covers(104) {
		t.Error("packet should not cover timestamps outside its range")
	}

	dst := make([]int16, 2)
	n := pkt.ReadSamples(0, 1, 2, dst)
	if n != 2 {
		t.Fatalf("ReadSamples returned %d, want 2", n)
	}
	if dst[0] != 20 || dst[1] != 30 {
		t.Errorf("samples = %v, want [20 30]", dst)
	}

	pkt.Release()
}

func TestPacketReadSamplesMissingChannel(t *testing.T) {
	composer := NewPooledSampleComposer(64)
	pkt := mkPacket(t, composer, 0, 0, ChannelMask(0b01), []int16{5, 6})

	dst := make([]int16, 2)
	n := pkt.ReadSamples(1, 0, 2, dst)
	if n != 2 {
		t.Fatalf("ReadSamples returned %d, want 2", n)
	}
	if dst[0] != 0 || dst[1] != 0 {
		t.Errorf("reading an absent channel should yield zeroes, got %v", dst)
	}
	pkt.Release()
}

func TestPacketRefCounting(t *testing.T) {
	composer := NewPooledSampleComposer(8)
	pkt := mkPacket(t, composer, 0, 0, ChannelMask(1), []int16{1, 2})

	pkt.Retain()
	pkt.Release() // refcount back to 1, payload still alive
	dst := make([]int16, 1)
	if n := pkt.ReadSamples(0, 0, 1, dst); n != 1 || dst[0] != 1 {
		t.Fatalf("packet payload should still be readable after one of two releases")
	}
	pkt.Release() // refcount to 0, payload returned to pool
}

func TestRangeEndWraps(t *testing.T) {
	composer := NewPooledSampleComposer(8)
	pkt := mkPacket(t, composer, 0, 0xFFFFFFFE, ChannelMask(1), []int16{1, 2, 3})
	if pkt.RangeEnd() != 1 {
		t.Errorf("RangeEnd() = %d, want wrap to 1", pkt.RangeEnd())
	}
	pkt.Release()
}
