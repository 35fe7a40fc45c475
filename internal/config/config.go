package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/netsound/netsound/internal/audio"
)

// Config holds all runtime configuration for the netsound server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	ListenAddr        string
	NumChannels       int
	SampleRate        int
	SamplesPerTick    int
	OutputLatency     int
	SessionLatency    int
	SessionTimeoutMS  int
	MaxSessions       int
	MaxSessionPackets int
	MaxDatagramBytes  int
	EnableTiming      bool
	WAVOutPath        string // if set, writes output frames to this WAV file
	MetricsAddr       string // address for the Prometheus scrape endpoint
	LogLevel          string
	LogFormat         string // log output format: "text" or "json"
}

// defaults
const (
	defaultListenAddr        = ":4010"
	defaultNumChannels       = 2
	defaultSampleRate        = 48000
	defaultSamplesPerTick    = 480 // 10ms at 48kHz
	defaultOutputLatency     = 4800
	defaultSessionLatency    = 4800
	defaultSessionTimeoutMS  = 30000
	defaultMaxSessions       = 64
	defaultMaxSessionPackets = 64
	defaultMaxDatagramBytes  = 1500
	defaultMetricsAddr       = ":9104"
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

// envPrefix is the prefix for all netsound environment variables.
const envPrefix = "NETSOUND_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("netsoundd", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "listen-addr", defaultListenAddr, "UDP address to receive audio datagrams on")
	fs.IntVar(&cfg.NumChannels, "channels", defaultNumChannels, "number of output channels")
	fs.IntVar(&cfg.SampleRate, "sample-rate", defaultSampleRate, "output sample rate in Hz")
	fs.IntVar(&cfg.SamplesPerTick, "samples-per-tick", defaultSamplesPerTick, "samples per channel generated per tick")
	fs.IntVar(&cfg.OutputLatency, "output-latency", defaultOutputLatency, "leading silence, in sample-units, before the first emitted frame")
	fs.IntVar(&cfg.SessionLatency, "session-latency", defaultSessionLatency, "jitter buffer depth, in sample-units, for new sessions")
	fs.IntVar(&cfg.SessionTimeoutMS, "session-timeout-ms", defaultSessionTimeoutMS, "milliseconds of silence before an empty session is reaped")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", defaultMaxSessions, "maximum concurrent sessions")
	fs.IntVar(&cfg.MaxSessionPackets, "max-session-packets", defaultMaxSessionPackets, "packet store capacity per session")
	fs.IntVar(&cfg.MaxDatagramBytes, "max-datagram-bytes", defaultMaxDatagramBytes, "maximum accepted datagram size in bytes")
	fs.BoolVar(&cfg.EnableTiming, "enable-timing", false, "pace output writes to wall-clock real time")
	fs.StringVar(&cfg.WAVOutPath, "wav-out", "", "if set, write the mixed output to this WAV file (otherwise output is discarded)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", defaultMetricsAddr, "address for the Prometheus metrics endpoint")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	envMap := map[string]string{
		"listen-addr":         envPrefix + "LISTEN_ADDR",
		"channels":            envPrefix + "CHANNELS",
		"sample-rate":         envPrefix + "SAMPLE_RATE",
		"samples-per-tick":    envPrefix + "SAMPLES_PER_TICK",
		"output-latency":      envPrefix + "OUTPUT_LATENCY",
		"session-latency":     envPrefix + "SESSION_LATENCY",
		"session-timeout-ms":  envPrefix + "SESSION_TIMEOUT_MS",
		"max-sessions":        envPrefix + "MAX_SESSIONS",
		"max-session-packets": envPrefix + "MAX_SESSION_PACKETS",
		"max-datagram-bytes":  envPrefix + "MAX_DATAGRAM_BYTES",
		"enable-timing":       envPrefix + "ENABLE_TIMING",
		"wav-out":             envPrefix + "WAV_OUT",
		"metrics-addr":        envPrefix + "METRICS_ADDR",
		"log-level":           envPrefix + "LOG_LEVEL",
		"log-format":          envPrefix + "LOG_FORMAT",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "listen-addr":
			cfg.ListenAddr = val
		case "channels":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.NumChannels = v
			}
		case "sample-rate":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.SampleRate = v
			}
		case "samples-per-tick":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.SamplesPerTick = v
			}
		case "output-latency":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.OutputLatency = v
			}
		case "session-latency":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.SessionLatency = v
			}
		case "session-timeout-ms":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.SessionTimeoutMS = v
			}
		case "max-sessions":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxSessions = v
			}
		case "max-session-packets":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxSessionPackets = v
			}
		case "max-datagram-bytes":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.MaxDatagramBytes = v
			}
		case "enable-timing":
			if v, err := strconv.ParseBool(val); err == nil {
				cfg.EnableTiming = v
			}
		case "wav-out":
			cfg.WAVOutPath = val
		case "metrics-addr":
			cfg.MetricsAddr = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.NumChannels < 1 || c.NumChannels > 32 {
		return fmt.Errorf("channels must be between 1 and 32, got %d", c.NumChannels)
	}
	if c.SampleRate < 1 {
		return fmt.Errorf("sample-rate must be positive, got %d", c.SampleRate)
	}
	if c.SamplesPerTick < 1 {
		return fmt.Errorf("samples-per-tick must be positive, got %d", c.SamplesPerTick)
	}
	if c.OutputLatency < 0 {
		return fmt.Errorf("output-latency must not be negative, got %d", c.OutputLatency)
	}
	if c.SessionLatency < 0 {
		return fmt.Errorf("session-latency must not be negative, got %d", c.SessionLatency)
	}
	if c.SessionTimeoutMS < 1 {
		return fmt.Errorf("session-timeout-ms must be positive, got %d", c.SessionTimeoutMS)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("max-sessions must be positive, got %d", c.MaxSessions)
	}
	if c.MaxSessionPackets < 1 {
		return fmt.Errorf("max-session-packets must be positive, got %d", c.MaxSessionPackets)
	}
	if c.MaxDatagramBytes < 12 {
		return fmt.Errorf("max-datagram-bytes must be at least 12, got %d", c.MaxDatagramBytes)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// ChannelMask builds the audio.ChannelMask for the configured channel
// count: channels 0..NumChannels-1, consecutive from zero.
func (c *Config) ChannelMask() audio.ChannelMask {
	return audio.ChannelMask(uint32(1<<uint(c.NumChannels)) - 1)
}

// SessionTimeout returns SessionTimeoutMS as a time.Duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMS) * time.Millisecond
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
