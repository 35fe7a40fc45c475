package audio

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of a jitter-buffered session.
type SessionState int

const (
	// SessionInitializing holds packets until the first Render call, at
	// which point the playout cursor is set from the earliest buffered
	// packet's timestamp (independent of arrival order) minus
	// session_latency, and the session moves to Playing.
	SessionInitializing SessionState = iota
	// SessionPlaying renders samples at the current cursor each tick.
	SessionPlaying
	// SessionBroken means an internal invariant collapsed (e.g. a
	// rate/channel-mask change mid-stream). Rendering emits silence;
	// the session is reaped on the next SessionManager.Update.
	SessionBroken
	// SessionIdle means no packets have arrived for session_timeout and
	// the store has drained. Reaped on the next SessionManager.Update.
	SessionIdle
)

func (s SessionState) String() string {
	switch s {
	case SessionInitializing:
		return "initializing"
	case SessionPlaying:
		return "playing"
	case SessionBroken:
		return "broken"
	case SessionIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Renderer is the narrow interface the ChannelMuxer uses to pull samples
// from an attached session once per tick.
type Renderer interface {
	// RenderChannels is the bitmask of channels this renderer can supply.
	RenderChannels() ChannelMask
	// Render fills dst (length n * RenderChannels().NumChannels(),
	// interleaved ascending-channel order) with the next n samples and
	// advances the renderer's internal position by n.
	Render(dst []int16, n int)
}

// Session is one remote stream: a PacketStore, a playout cursor in
// timestamp units, and the rendering logic that turns stored packets into
// an unbroken sample cadence despite loss, duplicates, and reordering.
//
// A Session is not safe for concurrent use. Per the pipeline's concurrency
// model, sessions are owned exclusively by the server/tick thread.
type Session struct {
	// ID is a diagnostic correlation id, generated fresh each time the
	// session is bound to a new (remote address, source id) pair. It has
	// no meaning to the protocol; it exists so a single stream's log
	// lines and metrics can be tied together across reconnects that
	// reuse the same remote address.
	ID         string
	RemoteAddr string
	Source     SourceID

	store          *PacketStore
	cursor         Timestamp
	haveBaseline   bool
	started        bool
	rate           uint32
	channels       ChannelMask
	sessionLatency Timestamp
	sessionTimeout time.Duration

	state        SessionState
	lastActivity time.Time
	createdAt    time.Time

	duplicates uint64
	stale      uint64
	logger     *slog.Logger
}

// sessionConfig bundles the construction/reset parameters a SessionPool
// applies to a pooled Session.
type sessionConfig struct {
	MaxPackets     int
	SessionLatency Timestamp
	SessionTimeout time.Duration
}

// newSession allocates a fresh session. In normal operation sessions are
// obtained from a SessionPool rather than constructed directly.
func newSession(cfg sessionConfig, logger *slog.Logger) *Session {
	s := &Session{
		store:  NewPacketStore(cfg.MaxPackets),
		logger: logger,
	}
	s.reset(cfg)
	return s
}

// reset reinitializes a pooled session for reuse with a new remote
// address/source. Called by the SessionPool on Acquire.
func (s *Session) reset(cfg sessionConfig) {
	s.store.Reset(cfg.MaxPackets)
	s.RemoteAddr = ""
	s.Source = 0
	s.cursor = 0
	s.haveBaseline = false
	s.started = false
	s.rate = 0
	s.channels = 0
	s.sessionLatency = cfg.SessionLatency
	s.sessionTimeout = cfg.SessionTimeout
	s.state = SessionInitializing
	s.duplicates = 0
	s.stale = 0
	now := time.Now()
	s.createdAt = now
	s.lastActivity = now
}

// bind attaches the session to a concrete (remote address, source id)
// pair after it is acquired from the pool.
func (s *Session) bind(remoteAddr string, source SourceID) {
	s.ID = uuid.NewString()
	s.RemoteAddr = remoteAddr
	s.Source = source
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState { return s.state }

// Broken reports whether the session has entered the Broken state.
func (s *Session) Broken() bool { return s.state == SessionBroken }

// Reapable reports whether the session should be removed: broken, or idle
// past session_timeout with an empty store.
func (s *Session) Reapable(now time.Time) bool {
	switch s.state {
	case SessionBroken:
		return true
	case SessionIdle:
		return true
	}
	if now.Sub(s.lastActivity) > s.sessionTimeout && s.store.Len() == 0 {
		s.state = SessionIdle
		return true
	}
	return false
}

// Store accepts a newly parsed packet. On the first accepted packet, the
// session's rate/channel-mask baseline is established. A rate or
// channel-mask mismatch against the baseline marks the session Broken.
//
// The playout cursor is deliberately NOT established here from "whichever
// packet arrives first": upstream reordering means the first packet Store
// sees need not carry the earliest timestamp, and seeding the cursor from
// it would later reject an earlier, legitimately-reordered packet as
// stale. Instead, while still Initializing, packets are inserted against
// their own range as the staleness cursor (so nothing buffered so far can
// ever look stale to itself), and the real cursor is set once, from the
// earliest buffered timestamp, on the first Render call.
//
// Store reports whether the packet was accepted, a duplicate, or stale, so
// the caller (SessionManager) can fold the outcome into its own cumulative
// drop counters. A packet that marks the session Broken is released without
// being stored and is reported as insertAccepted.
func (s *Session) Store(pkt *Packet) insertResult {
	s.lastActivity = time.Now()

	if !s.haveBaseline {
		s.rate = pkt.Rate
		s.channels = pkt.Channels
		s.haveBaseline = true
	} else if pkt.Rate != s.rate || pkt.Channels != s.channels {
		s.logger.Warn("session invariant violated, marking broken",
			"remote", s.RemoteAddr,
			"source", s.Source,
			"expected_rate", s.rate,
			"got_rate", pkt.Rate,
			"expected_channels", s.channels,
			"got_channels", pkt.Channels,
		)
		s.state = SessionBroken
		pkt.Release()
		return insertAccepted
	}

	staleCursor := pkt.Timestamp
	if s.started {
		staleCursor = s.cursor
	}
	result := s.store.Insert(pkt, staleCursor)
	switch result {
	case insertDuplicate:
		s.duplicates++
	case insertStale:
		s.stale++
	}
	return result
}

// DropStats returns the cumulative counts of packets this session has
// rejected as duplicates or stale.
func (s *Session) DropStats() (duplicates, stale uint64) {
	return s.duplicates, s.stale
}

// RenderChannels implements Renderer.
func (s *Session) RenderChannels() ChannelMask {
	return s.channels
}

// Render implements Renderer: it fills dst with n samples starting at the
// current cursor, across all of the session's channels, then advances the
// cursor by n and evicts packets that have fully passed. Gaps (no packet
// covering a position) and the Broken state both render as silence.
func (s *Session) Render(dst []int16, n int) {
	nch := s.channels.NumChannels()
	if nch == 0 {
		nch = 1
	}
	for i := range dst {
		dst[i] = 0
	}

	if !s.started && s.state != SessionBroken {
		if earliest, ok := s.store.Earliest(); ok {
			s.cursor = earliest - s.sessionLatency
			s.started = true
			s.state = SessionPlaying
		}
	}

	if s.state != SessionBroken {
		pos := 0
		t := s.cursor
		for pos < n {
			pkt, ok := s.store.Locate(t)
			if !ok {
				// Gap: fill silence up to the next known packet start, or
				// the rest of the frame if none is buffered yet.
				gap := n - pos
				if next, found := s.store.NextStart(t); found {
					if run := int(next - t); run < gap {
						gap = run
					}
				}
				if gap <= 0 {
					gap = 1
				}
				pos += gap
				t += Timestamp(gap)
				continue
			}

			avail := int(pkt.RangeEnd() - t)
			remaining := n - pos
			if avail > remaining {
				avail = remaining
			}
			offset := int(t - pkt.Timestamp)
			for _, ch := range s.channels.Channels() {
				slot := channelSlot(s.channels, ch)
				chanDst := make([]int16, avail)
				pkt.ReadSamples(ch, offset, avail, chanDst)
				for i := 0; i < avail; i++ {
					dst[(pos+i)*nch+slot] = chanDst[i]
				}
			}
			pos += avail
			t += Timestamp(avail)
		}
	}

	s.cursor += Timestamp(n)
	s.store.EvictThrough(s.cursor)
}
