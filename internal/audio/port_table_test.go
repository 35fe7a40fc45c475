package audio

import "testing"

type fakeParser struct{}

func (fakeParser) Parse(payload []byte) (*Packet, bool) { return nil, false }

func TestPortTableAddAndLookup(t *testing.T) {
	pt := NewPortTable()
	p := fakeParser{}
	if err := pt.AddPort("127.0.0.1:4010", p); err != nil {
		t.Fatalf("AddPort() error = %v", err)
	}

	got, ok := pt.Lookup("127.0.0.1:4010")
	if !ok || got != p {
		t.Fatalf("Lookup() = (%v, %v), want registered parser", got, ok)
	}

	if _, ok := pt.Lookup("127.0.0.1:4011"); ok {
		t.Fatal("Lookup() of unregistered address should fail")
	}
}

func TestPortTableRejectsDuplicate(t *testing.T) {
	pt := NewPortTable()
	if err := pt.AddPort("127.0.0.1:4010", fakeParser{}); err != nil {
		t.Fatalf("AddPort() error = %v", err)
	}
	if err := pt.AddPort("127.0.0.1:4010", fakeParser{}); err == nil {
		t.Fatal("AddPort() of a duplicate address should return an error")
	}
}
