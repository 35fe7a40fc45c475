package audio

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DelayedWriter wraps a SampleSink and prepends output_latency worth of
// silence before the first real frame, rounded up to whole frames. This is
// the "latency as leading silence" shaping step: downstream of the mixer,
// upstream of any device or rate-paced writer.
type DelayedWriter struct {
	sink          SampleSink
	channels      int
	samplesPerTick int
	pending       int // silence frames still owed
	done          bool
}

// NewDelayedWriter wraps sink, inserting enough leading silent frames (each
// samplesPerTick samples per channel) to cover outputLatency sample-units,
// rounding up so the delay is never short.
func NewDelayedWriter(sink SampleSink, channels ChannelMask, samplesPerTick int, outputLatency Timestamp) *DelayedWriter {
	nch := channels.NumChannels()
	if nch == 0 {
		nch = 1
	}
	pending := 0
	if samplesPerTick > 0 {
		pending = (int(outputLatency) + samplesPerTick - 1) / samplesPerTick
	}
	return &DelayedWriter{
		sink:           sink,
		channels:       nch,
		samplesPerTick: samplesPerTick,
		pending:        pending,
	}
}

// Write emits pending silent frames before forwarding frame to the wrapped
// sink. An empty frame (end-of-stream) passes straight through regardless
// of any still-pending delay.
func (w *DelayedWriter) Write(frame []int16) error {
	if len(frame) == 0 {
		w.done = true
		return w.sink.Write(frame)
	}
	if w.done {
		return w.sink.Write(frame)
	}
	for w.pending > 0 {
		silence := make([]int16, w.samplesPerTick*w.channels)
		if err := w.sink.Write(silence); err != nil {
			return err
		}
		w.pending--
	}
	return w.sink.Write(frame)
}

// TimedWriter wraps a SampleSink and paces writes to wall-clock real time
// using a token-bucket limiter sized to the stream's frame rate, so a
// downstream consumer (a sound card, a live network relay) receives frames
// no faster than they are meant to be played. TimedWriter never drops
// frames: on a momentary lag behind the limiter's schedule it simply writes
// through without waiting, and on a lead it blocks until due.
type TimedWriter struct {
	sink    SampleSink
	limiter *rate.Limiter
	n       int // frames worth of burst allowed per tick
}

// NewTimedWriter wraps sink with a limiter that permits one frame every
// tickDuration, with a burst of one so ticks cannot be front-loaded.
func NewTimedWriter(sink SampleSink, tickDuration time.Duration) *TimedWriter {
	limit := rate.Inf
	if tickDuration > 0 {
		limit = rate.Every(tickDuration)
	}
	return &TimedWriter{
		sink:    sink,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Write blocks until the limiter admits the next frame, then forwards it.
// An end-of-stream (empty) frame is written through immediately, unpaced.
func (w *TimedWriter) Write(frame []int16) error {
	if len(frame) == 0 {
		return w.sink.Write(frame)
	}
	if err := w.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return w.sink.Write(frame)
}
