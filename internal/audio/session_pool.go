package audio

import (
	"log/slog"
	"time"
)

// SessionPool is the external collaborator the SessionManager uses to
// obtain and return Session objects, avoiding per-session heap churn under
// session creation/expiry. Acquire returns ok=false when the pool is
// exhausted.
type SessionPool interface {
	Acquire() (*Session, bool)
	Release(*Session)
}

// FixedSessionPool is a SessionPool bounded to a fixed number of
// preallocated sessions, reset and handed out on Acquire.
type FixedSessionPool struct {
	cfg   sessionConfig
	free  []*Session
	inUse int
	cap   int
}

// NewFixedSessionPool preallocates capacity sessions, each with its own
// PacketStore sized maxSessionPackets, and a jitter-buffer depth and idle
// timeout shared by every session drawn from the pool.
func NewFixedSessionPool(capacity, maxSessionPackets int, sessionLatency Timestamp, sessionTimeout time.Duration, logger *slog.Logger) *FixedSessionPool {
	cfg := sessionConfig{
		MaxPackets:     maxSessionPackets,
		SessionLatency: sessionLatency,
		SessionTimeout: sessionTimeout,
	}
	p := &FixedSessionPool{cfg: cfg, cap: capacity}
	p.free = make([]*Session, 0, capacity)
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, newSession(cfg, logger))
	}
	return p
}

// Acquire returns a reset session ready to be bound to a (remote, source)
// pair, or ok=false if the pool is exhausted.
func (p *FixedSessionPool) Acquire() (*Session, bool) {
	if len(p.free) == 0 {
		return nil, false
	}
	n := len(p.free) - 1
	s := p.free[n]
	p.free = p.free[:n]
	s.reset(p.cfg)
	p.inUse++
	return s, true
}

// Release returns a session to the pool for reuse.
func (p *FixedSessionPool) Release(s *Session) {
	p.free = append(p.free, s)
	if p.inUse > 0 {
		p.inUse--
	}
}

// Capacity returns the total number of sessions the pool can hand out.
func (p *FixedSessionPool) Capacity() int { return p.cap }
