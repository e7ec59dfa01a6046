package capture

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/metastaff/voicekit/pkg/audio/pcm"
)

// StreamSource frames 16-bit little-endian PCM from an io.Reader and
// delivers it on the audio clock: one frame every
// frameSize/sampleRate seconds, the way a worklet processor delivers
// render quanta. This is the preferred source when audio arrives over
// a pipe, a socket, or a prerecorded file.
type StreamSource struct {
	r         io.Reader
	format    pcm.Format
	frameSize int
	realtime  bool

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// StreamOption configures a StreamSource.
type StreamOption func(*StreamSource)

// WithFrameSize overrides the samples-per-frame count (default 4096).
func WithFrameSize(n int) StreamOption {
	return func(s *StreamSource) {
		if n > 0 {
			s.frameSize = n
		}
	}
}

// WithRealtime toggles audio-clock pacing. Disabled, the source reads
// as fast as the reader allows; useful for tests and batch decoding.
func WithRealtime(enabled bool) StreamOption {
	return func(s *StreamSource) {
		s.realtime = enabled
	}
}

// NewStreamSource creates a StreamSource reading PCM in the given
// format from r.
func NewStreamSource(r io.Reader, format pcm.Format, opts ...StreamOption) *StreamSource {
	s := &StreamSource{
		r:         r,
		format:    format,
		frameSize: DefaultFrameSize,
		realtime:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SampleRate returns the source sample rate in Hz.
func (s *StreamSource) SampleRate() int {
	return s.format.SampleRate()
}

// Start begins reading frames and delivering them to onFrame from a
// dedicated goroutine. Delivery ends at reader EOF or Stop.
func (s *StreamSource) Start(onFrame func([]float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("capture: stream source already started")
	}
	done := make(chan struct{})
	s.done = done
	s.running = true

	go s.readLoop(done, onFrame)
	return nil
}

func (s *StreamSource) readLoop(done chan struct{}, onFrame func([]float32)) {
	frameDur := time.Duration(s.frameSize) * time.Second / time.Duration(s.format.SampleRate())

	var tick *time.Ticker
	if s.realtime {
		tick = time.NewTicker(frameDur)
		defer tick.Stop()
	}

	buf := make([]byte, s.frameSize*2)
	for {
		if tick != nil {
			select {
			case <-done:
				return
			case <-tick.C:
			}
		} else {
			select {
			case <-done:
				return
			default:
			}
		}

		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			onFrame(pcm.DecodeSamples(buf[:n-n%2]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				slog.Debug("stream source read ended", "err", err)
			}
			return
		}
	}
}

// Stop halts frame delivery. Idempotent; the reader stays open for a
// later Start.
func (s *StreamSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.done)
	return nil
}

// Close stops delivery and closes the underlying reader when it
// implements io.Closer.
func (s *StreamSource) Close() error {
	s.Stop()
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
