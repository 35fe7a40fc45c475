package audio

import "testing"

// fakeRenderer renders a constant value on a fixed channel mask.
type fakeRenderer struct {
	mask  ChannelMask
	value int16
}

func (f *fakeRenderer) RenderChannels() ChannelMask { return f.mask }

func (f *fakeRenderer) Render(dst []int16, n int) {
	for i := range dst {
		dst[i] = f.value
	}
}

func TestChannelMuxerMixesOverlappingChannels(t *testing.T) {
	m := NewChannelMuxer(ChannelMask(0b11))
	a := &fakeRenderer{mask: ChannelMask(0b11), value: 100}
	b := &fakeRenderer{mask: ChannelMask(0b11), value: 200}
	m.Attach(&Session{}, a)
	m.Attach(&Session{}, b)

	if m.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", m.Count())
	}

	frame := make([]int16, 2*4)
	m.Read(frame, 4)
	for i, v := range frame {
		if v != 300 {
			t.Errorf("frame[%d] = %d, want 300", i, v)
		}
	}
}

func TestChannelMuxerClampsOnOverflow(t *testing.T) {
	m := NewChannelMuxer(ChannelMask(0b1))
	key1, key2 := &Session{}, &Session{}
	m.Attach(key1, &fakeRenderer{mask: ChannelMask(0b1), value: 30000})
	m.Attach(key2, &fakeRenderer{mask: ChannelMask(0b1), value: 30000})

	frame := make([]int16, 1)
	m.Read(frame, 1)
	if frame[0] != 1<<15-1 {
		t.Errorf("frame[0] = %d, want clamp to %d", frame[0], 1<<15-1)
	}
}

func TestChannelMuxerDetach(t *testing.T) {
	m := NewChannelMuxer(ChannelMask(0b1))
	key := &Session{}
	m.Attach(key, &fakeRenderer{mask: ChannelMask(0b1), value: 42})
	m.Detach(key)

	if m.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 after Detach", m.Count())
	}

	frame := make([]int16, 4)
	m.Read(frame, 4)
	for _, v := range frame {
		if v != 0 {
			t.Errorf("frame should be silent after detach, got %v", frame)
		}
	}
}

func TestChannelMuxerRendererOnSubsetOfOutputChannels(t *testing.T) {
	m := NewChannelMuxer(ChannelMask(0b11)) // stereo output
	m.Attach(&Session{}, &fakeRenderer{mask: ChannelMask(0b01), value: 7}) // mono renderer feeds channel 0 only

	frame := make([]int16, 2*3)
	m.Read(frame, 3)
	for i := 0; i < 3; i++ {
		if frame[i*2] != 7 {
			t.Errorf("frame channel 0 at sample %d = %d, want 7", i, frame[i*2])
		}
		if frame[i*2+1] != 0 {
			t.Errorf("frame channel 1 at sample %d = %d, want 0 (mono renderer has no right channel)", i, frame[i*2+1])
		}
	}
}
