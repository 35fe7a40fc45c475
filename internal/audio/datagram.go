package audio

// Datagram is one received network message: source and destination
// addresses plus an opaque byte payload. Ownership of Payload transfers to
// whichever PacketParser consumes it via SessionManager.route.
type Datagram struct {
	Src     string
	Dst     string
	Payload []byte
}

// ReadStatus is the outcome of a DatagramSource.TryRead call.
type ReadStatus int

const (
	// ReadEmpty means the queue is transiently empty; try again next tick.
	ReadEmpty ReadStatus = iota
	// ReadOK means a datagram was returned.
	ReadOK
	// ReadClosed means the source is permanently closed; the server
	// should stop draining and treat this as the end of input.
	ReadClosed
)

// DatagramSource is the external collaborator feeding the Server: a
// non-blocking, bounded multi-producer-single-consumer queue normally
// filled by a dedicated socket receiver goroutine.
type DatagramSource interface {
	// TryRead returns the next datagram without blocking.
	TryRead() (Datagram, ReadStatus)
}

// SampleSink is the external collaborator consuming frames emitted by the
// Server: a bounded queue normally drained by an audio device writer
// goroutine, or a direct writer such as a WAV file.
//
// Write(emptyFrame) signals end-of-stream and must be the last call.
type SampleSink interface {
	Write(frame []int16) error
}
