package audio

import "testing"

func storePacket(seq Seqnum, ts Timestamp, numSamples int) *Packet {
	composer := NewPooledSampleComposer(numSamples)
	payload, _ := composer.Compose(numSamples)
	return NewPacket(1, seq, ts, false, 8000, ChannelMask(1), numSamples, payload)
}

func TestPacketStoreInsertAndLocate(t *testing.T) {
	s := NewPacketStore(4)
	pkt := storePacket(0, 100, 10)
	if r := s.Insert(pkt, 0); r != insertAccepted {
		t.Fatalf("Insert() = %v, want insertAccepted", r)
	}

	found, ok := s.Locate(105)
	if !ok || found.Seq != 0 {
		t.Fatalf("Locate(105) should find seq 0")
	}
	if _, ok := s.Locate(200); ok {
		t.Fatal("Locate(200) should not find anything")
	}
}

func TestPacketStoreDropsDuplicate(t *testing.T) {
	s := NewPacketStore(4)
	s.Insert(storePacket(0, 100, 10), 0)
	if r := s.Insert(storePacket(0, 100, 10), 0); r != insertDuplicate {
		t.Errorf("Insert() of duplicate seq = %v, want insertDuplicate", r)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestPacketStoreDropsStale(t *testing.T) {
	s := NewPacketStore(4)
	// cursor at 200: a packet whose range ends at or before 200 is stale.
	if r := s.Insert(storePacket(0, 100, 10), 200); r != insertStale {
		t.Errorf("Insert() of stale packet = %v, want insertStale", r)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestPacketStoreEvictsOldestOnOverflow(t *testing.T) {
	s := NewPacketStore(3)
	s.Insert(storePacket(0, 0, 10), 0)
	s.Insert(storePacket(1, 10, 10), 0)
	s.Insert(storePacket(2, 20, 10), 0)
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}

	// Overflow: seq 3 should evict the oldest (seq 0, timestamp 0).
	s.Insert(storePacket(3, 30, 10), 0)
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 after overflow", s.Len())
	}
	if _, ok := s.Locate(5); ok {
		t.Error("seq 0 (timestamp 0..10) should have been evicted")
	}
	if _, ok := s.Locate(35); !ok {
		t.Error("seq 3 (timestamp 30..40) should be present")
	}
}

func TestPacketStoreEvictThrough(t *testing.T) {
	s := NewPacketStore(4)
	s.Insert(storePacket(0, 0, 10), 0)
	s.Insert(storePacket(1, 10, 10), 0)

	s.EvictThrough(10)
	if _, ok := s.Locate(5); ok {
		t.Error("packet ending at 10 should have been evicted through cursor 10")
	}
	if _, ok := s.Locate(15); !ok {
		t.Error("packet ending at 20 should still be present")
	}
}

func TestPacketStoreNextStart(t *testing.T) {
	s := NewPacketStore(4)
	s.Insert(storePacket(0, 50, 10), 0)
	s.Insert(storePacket(1, 100, 10), 0)

	next, ok := s.NextStart(10)
	if !ok || next != 50 {
		t.Fatalf("NextStart(10) = (%d, %v), want (50, true)", next, ok)
	}
	next, ok = s.NextStart(60)
	if !ok || next != 100 {
		t.Fatalf("NextStart(60) = (%d, %v), want (100, true)", next, ok)
	}
	if _, ok := s.NextStart(200); ok {
		t.Fatal("NextStart(200) should find nothing")
	}
}
