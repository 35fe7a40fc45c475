package main

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netsound/netsound/internal/audio"
	"github.com/netsound/netsound/internal/config"
	"github.com/netsound/netsound/internal/metrics"
	"github.com/netsound/netsound/internal/queue"
	"github.com/netsound/netsound/internal/rtpaudio"
	"github.com/netsound/netsound/internal/wavsink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	logger.Info("starting netsoundd",
		"listen_addr", cfg.ListenAddr,
		"channels", cfg.NumChannels,
		"sample_rate", cfg.SampleRate,
		"samples_per_tick", cfg.SamplesPerTick,
	)

	conn, err := net.ListenPacket("udp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind udp listener", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	dq := queue.NewDatagramQueue(cfg.MaxSessions*cfg.MaxSessionPackets, logger)
	go receiveLoop(conn, dq, cfg.MaxDatagramBytes, logger)

	sink, err := newSink(cfg, logger)
	if err != nil {
		logger.Error("failed to open output sink", "error", err)
		os.Exit(1)
	}

	channels := cfg.ChannelMask()
	sampleComposer := audio.NewPooledSampleComposer(cfg.SamplesPerTick * cfg.NumChannels * 4)
	byteComposer := audio.NewPooledByteComposer(cfg.MaxDatagramBytes)

	var options audio.ServerOptions
	if cfg.EnableTiming {
		options |= audio.EnableTiming
	}

	srvCfg := audio.ServerConfig{
		Channels:             channels,
		SampleRate:           uint32(cfg.SampleRate),
		SamplesPerTick:       cfg.SamplesPerTick,
		OutputLatency:        audio.Timestamp(cfg.OutputLatency),
		SessionLatency:       audio.Timestamp(cfg.SessionLatency),
		SessionTimeout:       cfg.SessionTimeout(),
		MaxSessions:          cfg.MaxSessions,
		MaxSessionPackets:    cfg.MaxSessionPackets,
		Options:              options,
		SessionPool: audio.NewFixedSessionPool(
			cfg.MaxSessions, cfg.MaxSessionPackets,
			audio.Timestamp(cfg.SessionLatency), cfg.SessionTimeout(), logger,
		),
		ByteBufferComposer:   byteComposer,
		SampleBufferComposer: sampleComposer,
		Logger:               logger,
	}

	srv := audio.New(dq, sink, srvCfg)

	parser := rtpaudio.NewParser(uint32(cfg.SampleRate), channels, sampleComposer)
	if err := srv.AddPort(conn.LocalAddr().String(), parser); err != nil {
		logger.Error("failed to register port", "error", err)
		os.Exit(1)
	}

	startMetricsServer(cfg, srv, logger)

	go srv.Run()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", "signal", sig.String())

	srv.Stop()
	dq.Close()

	deadline := time.Now().Add(5 * time.Second)
	for !srv.Stopped() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	logger.Info("netsoundd stopped")
}

// receiveLoop reads UDP datagrams and pushes them into the server's
// datagram queue. It runs on its own goroutine, separate from the tick
// thread, per the pipeline's three-thread concurrency model.
func receiveLoop(conn net.PacketConn, dq *queue.DatagramQueue, maxBytes int, logger *slog.Logger) {
	buf := make([]byte, maxBytes)
	localAddr := conn.LocalAddr().String()
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			logger.Warn("udp read error, stopping receive loop", "error", err)
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		dq.Push(audio.Datagram{Src: addr.String(), Dst: localAddr, Payload: payload})
	}
}

func newSink(cfg *config.Config, logger *slog.Logger) (audio.SampleSink, error) {
	if cfg.WAVOutPath != "" {
		return wavsink.New(cfg.WAVOutPath, uint32(cfg.SampleRate), cfg.NumChannels, logger)
	}
	return &stdoutSink{}, nil
}

// stdoutSink discards frames, only counting them. Used when no --wav-out
// path is configured, so the pipeline has somewhere to write without
// requiring an actual audio device.
type stdoutSink struct {
	frames uint64
}

func (s *stdoutSink) Write(frame []int16) error {
	if len(frame) == 0 {
		return nil
	}
	s.frames++
	return nil
}

func startMetricsServer(cfg *config.Config, srv *audio.Server, logger *slog.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(srv, srv, srv, time.Now()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
}
