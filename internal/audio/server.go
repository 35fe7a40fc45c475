package audio

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ServerOptions is a bitmask of optional Server behaviors.
type ServerOptions uint32

const (
	// EnableTiming wraps the sink in a TimedWriter that paces writes to
	// wall-clock real time at the configured sample rate.
	EnableTiming ServerOptions = 1 << iota
)

// ServerConfig bundles the fixed parameters and required collaborators for
// a Server. New validates it and fails hard on any missing collaborator or
// nonsensical value, since a misconfigured pipeline cannot safely degrade.
type ServerConfig struct {
	Channels       ChannelMask
	SampleRate     uint32
	SamplesPerTick int
	OutputLatency  Timestamp
	SessionLatency Timestamp
	SessionTimeout time.Duration
	MaxSessions    int
	MaxSessionPackets int
	Options        ServerOptions

	SessionPool          SessionPool
	ByteBufferComposer   ByteBufferComposer
	SampleBufferComposer SampleBufferComposer

	Logger *slog.Logger
}

// Server is the pipeline orchestrator: it drains datagrams, updates
// sessions, mixes one output frame per tick, and writes it downstream.
// Server is driven by a single goroutine (Run, or repeated Tick calls) and
// is not otherwise safe for concurrent use; Stop is the sole exception.
type Server struct {
	cfg    ServerConfig
	source DatagramSource
	sink   SampleSink

	ports   *PortTable
	manager *SessionManager
	muxer   *ChannelMuxer

	drainLimit int
	logger     *slog.Logger

	stopping atomic.Bool
	stopped  atomic.Bool

	ticksCompleted atomic.Uint64
	ticksFailed    atomic.Uint64
}

// New validates cfg and wires a Server over source and sink. It panics if
// the channel mask is empty, samples_per_tick is zero, or any required
// composer/pool collaborator is nil: these are construction-time
// programmer errors, not runtime conditions to recover from.
func New(source DatagramSource, sink SampleSink, cfg ServerConfig) *Server {
	if cfg.Channels.NumChannels() == 0 {
		panic("audio: ServerConfig.Channels must not be empty")
	}
	if cfg.SamplesPerTick <= 0 {
		panic("audio: ServerConfig.SamplesPerTick must be > 0")
	}
	if cfg.SessionPool == nil {
		panic("audio: ServerConfig.SessionPool is required")
	}
	if cfg.ByteBufferComposer == nil {
		panic("audio: ServerConfig.ByteBufferComposer is required")
	}
	if cfg.SampleBufferComposer == nil {
		panic("audio: ServerConfig.SampleBufferComposer is required")
	}
	if source == nil {
		panic("audio: datagram source is required")
	}
	if sink == nil {
		panic("audio: audio sink is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("subsystem", "audio.server")

	ports := NewPortTable()
	muxer := NewChannelMuxer(cfg.Channels)
	manager := NewSessionManager(ports, cfg.SessionPool, muxer, cfg.MaxSessions, logger)

	wrapped := sink
	if cfg.Options&EnableTiming != 0 && cfg.SampleRate > 0 {
		tickDuration := time.Duration(cfg.SamplesPerTick) * time.Second / time.Duration(cfg.SampleRate)
		wrapped = NewTimedWriter(wrapped, tickDuration)
	}
	wrapped = NewDelayedWriter(wrapped, cfg.Channels, cfg.SamplesPerTick, cfg.OutputLatency)

	drainLimit := cfg.MaxSessions * cfg.MaxSessionPackets
	if drainLimit <= 0 {
		drainLimit = cfg.MaxSessionPackets
	}

	return &Server{
		cfg:        cfg,
		source:     source,
		sink:       wrapped,
		ports:      ports,
		manager:    manager,
		muxer:      muxer,
		drainLimit: drainLimit,
		logger:     logger,
	}
}

// AddPort registers a (local address, parser) binding. Must be called
// before any datagram addressed to it is routed; duplicate addresses are
// rejected.
func (s *Server) AddPort(addr string, parser PacketParser) error {
	return s.manager.AddPort(addr, parser)
}

// NumSessions returns the current session count, advisory only: it can
// change on the very next tick.
func (s *Server) NumSessions() int {
	return s.manager.NumSessions()
}

// Stats returns the cumulative drop/reap counters from the SessionManager,
// for metrics export.
func (s *Server) Stats() (unroutable, parseFailures, poolExhausted, duplicates, stale, reaped uint64) {
	return s.manager.Stats()
}

// Stop requests termination, observable before the next tick boundary.
// Safe to call from any goroutine.
func (s *Server) Stop() {
	s.stopping.Store(true)
}

// Tick executes one pipeline step: drain pending datagrams, update session
// state, mix one output frame, and write it downstream. It returns false
// on a terminal failure (frame allocation failure, a sink write failure, or a
// non-recoverable SessionManager invariant violation), after which the server must not be
// ticked again. Tick never blocks on the datagram source.
func (s *Server) Tick() bool {
	for i := 0; i < s.drainLimit; i++ {
		dgm, status := s.source.TryRead()
		if status != ReadOK {
			break
		}
		s.manager.Route(dgm)
	}

	if !s.manager.Update(time.Now()) {
		s.logger.Error("session manager update failed")
		s.ticksFailed.Add(1)
		return false
	}

	n := s.cfg.SamplesPerTick
	payload, ok := s.cfg.SampleBufferComposer.Compose(n * s.cfg.Channels.NumChannels())
	if !ok {
		s.logger.Error("output frame allocation failed")
		s.ticksFailed.Add(1)
		return false
	}
	frame := payload.Samples()

	s.muxer.Read(frame, n)

	err := s.sink.Write(frame)
	payload.release()
	if err != nil {
		s.logger.Error("sink write failed", "error", err)
		s.ticksFailed.Add(1)
		return false
	}
	s.ticksCompleted.Add(1)
	return true
}

// TicksCompleted returns the cumulative number of ticks that emitted a
// frame successfully, for metrics export.
func (s *Server) TicksCompleted() uint64 {
	return s.ticksCompleted.Load()
}

// TicksFailed returns the cumulative number of ticks that returned a
// terminal failure, for metrics export.
func (s *Server) TicksFailed() uint64 {
	return s.ticksFailed.Load()
}

// Run invokes Tick in a loop until Stop is observed, then writes an empty
// end-of-stream frame to the sink.
func (s *Server) Run() {
	for !s.stopping.Load() {
		if !s.Tick() {
			break
		}
	}
	s.stopped.Store(true)
	if err := s.sink.Write(nil); err != nil {
		s.logger.Error("end-of-stream write failed", "error", err)
	}
}

// Stopped reports whether Run has exited.
func (s *Server) Stopped() bool {
	return s.stopped.Load()
}

func (s *Server) String() string {
	return fmt.Sprintf("server(sessions=%d)", s.NumSessions())
}
