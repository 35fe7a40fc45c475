package audio

import (
	"log/slog"
	"time"
)

// SessionManager owns the session registry keyed by remote address, routes
// incoming datagrams through the PortTable and a session's parser into
// stored packets, and reaps broken/idle sessions each tick. Sessions are
// acquired from and returned to a SessionPool so steady-state operation
// does not allocate.
//
// SessionManager is not safe for concurrent use; it is driven exclusively
// by the server/tick thread.
type SessionManager struct {
	ports      *PortTable
	pool       SessionPool
	muxer      *ChannelMuxer
	maxSessions int
	byAddr     map[string]*Session
	logger     *slog.Logger

	unroutable    uint64
	parseFailures uint64
	poolExhausted uint64
	duplicates    uint64
	stale         uint64
	reaped        uint64
}

// NewSessionManager creates a manager over the given port table, session
// pool, and output muxer, admitting at most maxSessions concurrent
// sessions regardless of pool capacity.
func NewSessionManager(ports *PortTable, pool SessionPool, muxer *ChannelMuxer, maxSessions int, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		ports:       ports,
		pool:        pool,
		muxer:       muxer,
		maxSessions: maxSessions,
		byAddr:      make(map[string]*Session),
		logger:      logger,
	}
}

// AddPort registers a local destination address with the parser that
// decodes datagrams addressed to it.
func (m *SessionManager) AddPort(addr string, parser PacketParser) error {
	return m.ports.AddPort(addr, parser)
}

// NumSessions returns the number of live sessions.
func (m *SessionManager) NumSessions() int {
	return len(m.byAddr)
}

// Route parses dgm via the parser registered for its destination port and
// stores the resulting packet in the session for dgm's source address,
// acquiring and attaching a new session on first contact and replacing it
// if the stream's source id changes. Unroutable datagrams (unknown
// destination port, parse failure, or pool exhaustion) are dropped and
// counted; Route never blocks and never returns an error, since a single
// malformed or lost datagram must not disturb every other session's
// cadence.
func (m *SessionManager) Route(dgm Datagram) {
	parser, ok := m.ports.Lookup(dgm.Dst)
	if !ok {
		m.unroutable++
		m.logger.Debug("datagram addressed to unknown port", "dst", dgm.Dst)
		return
	}

	pkt, ok := parser.Parse(dgm.Payload)
	if !ok {
		m.parseFailures++
		m.logger.Debug("failed to parse datagram payload", "src", dgm.Src, "dst", dgm.Dst)
		return
	}

	sess, existing := m.byAddr[dgm.Src]
	if existing && sess.Source != pkt.Source {
		m.logger.Info("source id changed, replacing session",
			"remote", dgm.Src, "old_source", sess.Source, "new_source", pkt.Source)
		m.evict(dgm.Src, sess)
		existing = false
	}

	if !existing {
		if m.maxSessions > 0 && len(m.byAddr) >= m.maxSessions {
			m.poolExhausted++
			m.logger.Warn("max sessions reached, dropping datagram", "remote", dgm.Src)
			pkt.Release()
			return
		}
		newSess, ok := m.pool.Acquire()
		if !ok {
			m.poolExhausted++
			m.logger.Warn("session pool exhausted, dropping datagram", "remote", dgm.Src)
			pkt.Release()
			return
		}
		newSess.bind(dgm.Src, pkt.Source)
		m.byAddr[dgm.Src] = newSess
		m.muxer.Attach(newSess, newSess)
		m.logger.Info("session created", "session_id", newSess.ID, "remote", dgm.Src, "source", pkt.Source)
		sess = newSess
	}

	switch sess.Store(pkt) {
	case insertDuplicate:
		m.duplicates++
	case insertStale:
		m.stale++
	}
}

// Update reaps sessions that have gone Broken or timed out idle since the
// last tick, returning the removed sessions to the pool and detaching them
// from the muxer. It does not advance any session's playout cursor: that
// happens exactly once per tick, inside Session.Render, driven by the
// ChannelMuxer during frame assembly. Advancing it here too would apply it
// twice per tick.
//
// Update returns true unconditionally: reaping a broken or idle session is
// routine bookkeeping, not a non-recoverable invariant violation. The bool
// result exists for interface fidelity with the drain/update/mix/write tick
// sequence; Tick stops calling it only when Update itself reports failure.
func (m *SessionManager) Update(now time.Time) bool {
	for addr, sess := range m.byAddr {
		if sess.Reapable(now) {
			m.reaped++
			m.logger.Info("session reaped", "session_id", sess.ID, "remote", addr, "state", sess.State())
			m.evict(addr, sess)
		}
	}
	return true
}

func (m *SessionManager) evict(addr string, sess *Session) {
	m.muxer.Detach(sess)
	delete(m.byAddr, addr)
	m.pool.Release(sess)
}

// Stats returns the cumulative drop/reap counters, for metrics export.
func (m *SessionManager) Stats() (unroutable, parseFailures, poolExhausted, duplicates, stale, reaped uint64) {
	return m.unroutable, m.parseFailures, m.poolExhausted, m.duplicates, m.stale, m.reaped
}
