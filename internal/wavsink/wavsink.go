// Package wavsink implements audio.SampleSink as a linear-PCM WAV file
// writer: the demo "sound card" for the receive pipeline, in the absence
// of an actual audio device.
package wavsink

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const wavHeaderSize = 44

// Sink writes interleaved signed 16-bit PCM frames to a WAV file, rewriting
// the header with the final data size when Write receives the
// end-of-stream sentinel (an empty frame).
//
// Write must be called from a single goroutine; it is the terminal stage
// of the writer chain (DelayedWriter → [TimedWriter] → Sink) and is not
// otherwise safe for concurrent use.
type Sink struct {
	file       *os.File
	path       string
	sampleRate uint32
	channels   uint16
	dataSize   uint32
	closed     bool
	logger     *slog.Logger
}

// New creates a WAV sink at path for the given sample rate and channel
// count. Parent directories are created if needed. A placeholder header is
// written immediately and rewritten with the real data size on Close (or
// on receiving an end-of-stream frame via Write).
func New(path string, sampleRate uint32, channels int, logger *slog.Logger) (*Sink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating wav output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating wav file: %w", err)
	}

	s := &Sink{
		file:       f,
		path:       path,
		sampleRate: sampleRate,
		channels:   uint16(channels),
		logger:     logger.With("subsystem", "wavsink", "path", path),
	}

	if err := s.writeHeader(0); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing wav header: %w", err)
	}

	s.logger.Info("wav output opened")
	return s, nil
}

// Write implements audio.SampleSink. An empty frame is the end-of-stream
// sentinel: it finalizes the header and closes the file. Write after
// end-of-stream is a no-op.
func (s *Sink) Write(frame []int16) error {
	if s.closed {
		return nil
	}
	if len(frame) == 0 {
		return s.Close()
	}

	buf := make([]byte, len(frame)*2)
	for i, v := range frame {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	n, err := s.file.Write(buf)
	if err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	s.dataSize += uint32(n)
	return nil
}

// Close finalizes the WAV header with the actual data size and closes the
// file. Safe to call more than once.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if _, err := s.file.Seek(0, 0); err != nil {
		s.file.Close()
		return fmt.Errorf("seeking to rewrite wav header: %w", err)
	}
	if err := s.writeHeader(s.dataSize); err != nil {
		s.file.Close()
		return fmt.Errorf("rewriting wav header: %w", err)
	}

	s.logger.Info("wav output closed", "data_bytes", s.dataSize)
	return s.file.Close()
}

// writeHeader writes a 44-byte canonical WAV header for 16-bit linear PCM.
func (s *Sink) writeHeader(dataSize uint32) error {
	var hdr [wavHeaderSize]byte

	const bitsPerSample = 16
	blockAlign := uint16(s.channels) * (bitsPerSample / 8)
	byteRate := s.sampleRate * uint32(blockAlign)

	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], wavHeaderSize-8+dataSize)
	copy(hdr[8:12], "WAVE")

	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // sub-chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], s.channels)
	binary.LittleEndian.PutUint32(hdr[24:28], s.sampleRate)
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)

	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	_, err := s.file.Write(hdr[:])
	return err
}
