// Package queue provides bounded, non-blocking channel-backed queues that
// bridge network I/O goroutines into the audio pipeline's tick thread.
package queue

import (
	"log/slog"
	"sync/atomic"

	"github.com/netsound/netsound/internal/audio"
)

// DatagramQueue is a bounded multi-producer-single-consumer queue of
// received datagrams. A socket receiver goroutine calls Push; the server
// thread drains it non-blockingly via TryRead, satisfying
// audio.DatagramSource. Push never blocks: a full queue drops the
// datagram and increments a counter, since a receive pipeline has no
// correct backpressure signal to send back over UDP.
type DatagramQueue struct {
	ch     chan audio.Datagram
	closed atomic.Bool
	logger *slog.Logger

	dropped atomic.Uint64
}

// NewDatagramQueue creates a queue with the given capacity.
func NewDatagramQueue(capacity int, logger *slog.Logger) *DatagramQueue {
	return &DatagramQueue{
		ch:     make(chan audio.Datagram, capacity),
		logger: logger.With("subsystem", "datagram-queue"),
	}
}

// Push enqueues a datagram without blocking. Returns false if the queue is
// full or closed; the datagram is dropped and a counter incremented.
func (q *DatagramQueue) Push(dgm audio.Datagram) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.ch <- dgm:
		return true
	default:
		q.dropped.Add(1)
		q.logger.Warn("datagram queue full, dropping", "src", dgm.Src)
		return false
	}
}

// TryRead implements audio.DatagramSource.
func (q *DatagramQueue) TryRead() (audio.Datagram, audio.ReadStatus) {
	select {
	case dgm := <-q.ch:
		return dgm, audio.ReadOK
	default:
		if q.closed.Load() {
			return audio.Datagram{}, audio.ReadClosed
		}
		return audio.Datagram{}, audio.ReadEmpty
	}
}

// Close marks the queue closed: Push stops accepting new datagrams, and
// TryRead reports ReadClosed once already-buffered datagrams are drained.
// The channel itself is never closed, so a racing Push can never panic on
// a send to a closed channel.
func (q *DatagramQueue) Close() {
	q.closed.Store(true)
}

// Dropped returns the cumulative number of datagrams dropped for being
// pushed to a full queue.
func (q *DatagramQueue) Dropped() uint64 {
	return q.dropped.Load()
}
