package audio

import (
	"testing"
	"time"
)

func TestFixedSessionPoolExhaustion(t *testing.T) {
	p := NewFixedSessionPool(2, 8, 0, time.Minute, testLogger())

	s1, ok := p.Acquire()
	if !ok {
		t.Fatal("first Acquire() should succeed")
	}
	s2, ok := p.Acquire()
	if !ok {
		t.Fatal("second Acquire() should succeed")
	}
	if _, ok := p.Acquire(); ok {
		t.Fatal("third Acquire() should fail, pool capacity is 2")
	}

	p.Release(s1)
	s3, ok := p.Acquire()
	if !ok {
		t.Fatal("Acquire() after Release() should succeed")
	}
	if s3 != s1 {
		t.Error("Acquire() should hand back the most recently released session")
	}
	_ = s2
}

func TestFixedSessionPoolResetsOnAcquire(t *testing.T) {
	p := NewFixedSessionPool(1, 8, 0, time.Minute, testLogger())
	composer := NewPooledSampleComposer(64)

	s, _ := p.Acquire()
	s.bind("client:1", 1)
	feedPacket(s, composer, 0, 0, 1, 10)
	p.Release(s)

	s2, ok := p.Acquire()
	if !ok {
		t.Fatal("Acquire() should succeed")
	}
	if s2.store.Len() != 0 {
		t.Errorf("reacquired session should have an empty store, got len %d", s2.store.Len())
	}
	if s2.RemoteAddr != "" {
		t.Errorf("reacquired session should have a cleared remote address, got %q", s2.RemoteAddr)
	}
}
