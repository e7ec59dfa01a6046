package asr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/metastaff/voicekit/pkg/audio/capture"
	"github.com/metastaff/voicekit/pkg/audio/pcm"
	"github.com/metastaff/voicekit/pkg/audio/resample"
	"github.com/metastaff/voicekit/pkg/audio/vad"
	"github.com/metastaff/voicekit/pkg/iat"
)

// DefaultStopDelay is how long the recognizer lingers after a final
// result before closing the listening episode, letting any trailing
// gateway messages drain.
const DefaultStopDelay = 50 * time.Millisecond

// ErrDestroyed is returned by Start after Destroy has released the
// recognizer's capture resources.
var ErrDestroyed = errors.New("asr: recognizer destroyed")

// Config configures a Recognizer.
type Config struct {
	// URL is the recognition gateway WebSocket endpoint.
	URL string

	// Header carries extra handshake headers.
	Header http.Header

	// Source supplies raw audio frames. Required.
	Source capture.FrameSource

	// Format is the wire audio format (default 16 kHz mono PCM16).
	Format pcm.Format

	// ChunkSamples is the wire chunk size in target-rate samples
	// (default 640, 40ms at 16 kHz).
	ChunkSamples int

	// VAD configures end-of-utterance detection.
	VAD vad.Config

	// SegmentGap configures transcript segmentation (see Aggregator).
	SegmentGap time.Duration

	// DialTimeout bounds the gateway handshake.
	DialTimeout time.Duration

	// StopDelay is the linger between a final result and episode close
	// (default 50ms).
	StopDelay time.Duration

	// OnEvent receives lifecycle and result events. Must not block.
	OnEvent Handler
}

// Recognizer runs the full listening pipeline: capture frames feed the
// energy detector and the resampling chunker in parallel, encoded
// chunks stream to the gateway session, and inbound results fold
// through the aggregator into interim/final events. One Recognizer
// runs at most one listening episode at a time; episodes are cheap to
// restart.
type Recognizer struct {
	cfg     Config
	bridge  *capture.Bridge
	chunker *resample.Chunker
	det     *vad.Detector
	agg     *Aggregator
	handler Handler

	mu           sync.Mutex
	session      *iat.Session
	listening    bool
	waitingFinal bool
	stopTimer    *time.Timer
	destroyed    bool
}

// New builds a recognizer around cfg.Source. The pipeline is idle
// until Start.
func New(cfg Config) (*Recognizer, error) {
	if cfg.Source == nil {
		return nil, errors.New("asr: capture source required")
	}
	if cfg.ChunkSamples <= 0 {
		cfg.ChunkSamples = resample.DefaultChunkSamples
	}
	if cfg.StopDelay <= 0 {
		cfg.StopDelay = DefaultStopDelay
	}

	r := &Recognizer{
		cfg:     cfg,
		bridge:  capture.NewBridge(cfg.Source),
		handler: cfg.OnEvent,
	}
	r.chunker = resample.NewChunker(cfg.Format, cfg.ChunkSamples, r.sendChunk)
	r.det = vad.New(cfg.VAD, vad.Hooks{
		OnSpeechStart:    func() { r.emit(Event{Kind: EventSpeechStart}) },
		OnSpeechEnd:      func() { r.emit(Event{Kind: EventSpeechEnd}) },
		OnEndOfUtterance: r.endOfUtterance,
	})
	r.agg = NewAggregator(AggregatorConfig{
		SegmentGap: cfg.SegmentGap,
		OnInterim: func(text string, confidence float64) {
			r.emit(Event{Kind: EventResult, Text: text, Confidence: confidence})
		},
		OnFinal: func(text string, confidence float64) {
			r.emit(Event{Kind: EventResult, Text: text, Final: true, Confidence: confidence})
		},
	})
	return r, nil
}

// Start opens a gateway session and begins streaming captured audio.
// Starting while already listening is a no-op.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		return ErrDestroyed
	}
	if r.listening {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	sess, err := iat.Dial(ctx, iat.Config{
		URL:         r.cfg.URL,
		DialTimeout: r.cfg.DialTimeout,
		Format:      r.cfg.Format,
		Header:      r.cfg.Header,
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.destroyed || r.listening {
		r.mu.Unlock()
		sess.Abort()
		if r.destroyed {
			return ErrDestroyed
		}
		return nil
	}
	r.session = sess
	r.listening = true
	r.waitingFinal = false
	r.mu.Unlock()

	r.chunker.Reset()
	r.det.Reset()
	r.det.Resume()
	r.agg.Reset()

	if err := r.bridge.StartCapture(r.onFrame); err != nil {
		r.mu.Lock()
		r.session = nil
		r.listening = false
		r.mu.Unlock()
		sess.Abort()
		return err
	}

	go r.recvLoop(sess)

	r.emit(Event{Kind: EventConnected})
	r.emit(Event{Kind: EventStart})
	return nil
}

// Listening reports whether a listening episode is active.
func (r *Recognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// ClearPartial drops the running transcript without ending the
// episode. Used when synthesized playback starts and stale partials
// must not linger on screen.
func (r *Recognizer) ClearPartial() {
	r.agg.Reset()
}

func (r *Recognizer) onFrame(frame []float32) {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return
	}
	waiting := r.waitingFinal
	r.mu.Unlock()

	r.det.Process(frame)
	if waiting {
		// The utterance is closing; hold new audio until rollover.
		return
	}
	r.chunker.Push(frame, r.bridge.SampleRate())
}

func (r *Recognizer) sendChunk(chunk []byte) {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess == nil {
		return
	}
	if err := sess.SendChunk(chunk); err != nil && err != iat.ErrNotConnected {
		slog.Debug("audio chunk send failed", "err", err)
	}
}

// endOfUtterance runs on the silence timer goroutine once the detector
// decides the speaker finished.
func (r *Recognizer) endOfUtterance() {
	r.mu.Lock()
	if !r.listening || r.waitingFinal {
		r.mu.Unlock()
		return
	}
	r.waitingFinal = true
	sess := r.session
	r.mu.Unlock()

	r.det.Suspend()
	r.chunker.Flush()
	if sess != nil {
		if err := sess.SendEnd(); err != nil {
			r.emit(Event{Kind: EventError, Err: err})
		}
	}
}

func (r *Recognizer) recvLoop(sess *iat.Session) {
	for msg := range sess.Results() {
		if msg.Error != "" {
			r.emit(Event{Kind: EventError, Err: &iat.Error{Message: msg.Error, ReqID: sess.ReqID()}})
			sess.Abort()
			continue
		}
		if msg.Data == nil {
			continue
		}
		final := msg.Data.Status == iat.StatusLastFrame
		r.agg.Push(msg.Data.Result, final)
		if final {
			r.afterFinal(sess)
		}
	}
	r.teardown(sess, sess.Err())
}

// afterFinal re-arms the pipeline for the next utterance and schedules
// the episode close.
func (r *Recognizer) afterFinal(sess *iat.Session) {
	r.mu.Lock()
	if r.session != sess {
		r.mu.Unlock()
		return
	}
	r.waitingFinal = false
	if r.stopTimer != nil {
		r.stopTimer.Stop()
	}
	r.stopTimer = time.AfterFunc(r.cfg.StopDelay, func() {
		r.Stop(context.Background())
	})
	r.mu.Unlock()

	sess.Rollover()
	r.det.Reset()
	r.det.Resume()
}

// Stop ends the listening episode gracefully: capture stops, any
// buffered audio flushes, the final frame goes out, and the socket
// closes. Stopping twice in a row is a no-op.
func (r *Recognizer) Stop(ctx context.Context) error {
	r.mu.Lock()
	sess := r.session
	if sess == nil {
		r.mu.Unlock()
		return nil
	}
	if r.stopTimer != nil {
		r.stopTimer.Stop()
		r.stopTimer = nil
	}
	r.mu.Unlock()

	r.bridge.StopCapture()
	r.chunker.Flush()
	return sess.Stop(ctx)
}

// Abort tears the episode down immediately: no final frame, no grace.
func (r *Recognizer) Abort() {
	r.mu.Lock()
	sess := r.session
	if r.stopTimer != nil {
		r.stopTimer.Stop()
		r.stopTimer = nil
	}
	r.mu.Unlock()

	r.bridge.StopCapture()
	if sess != nil {
		sess.Abort()
	}
}

// Destroy aborts any active episode and releases the capture source.
// The recognizer cannot be started again afterwards.
func (r *Recognizer) Destroy() error {
	r.mu.Lock()
	r.destroyed = true
	r.mu.Unlock()
	r.Abort()
	return r.bridge.Destroy()
}

// teardown finishes one listening episode. It runs once per session,
// when the receive loop drains.
func (r *Recognizer) teardown(sess *iat.Session, err error) {
	r.mu.Lock()
	if r.session != sess {
		r.mu.Unlock()
		return
	}
	r.session = nil
	r.listening = false
	r.waitingFinal = false
	if r.stopTimer != nil {
		r.stopTimer.Stop()
		r.stopTimer = nil
	}
	r.mu.Unlock()

	r.bridge.StopCapture()
	r.det.Suspend()

	if err != nil {
		r.emit(Event{Kind: EventError, Err: err})
	}
	r.emit(Event{Kind: EventEnd})
	r.emit(Event{Kind: EventDisconnected})
}

func (r *Recognizer) emit(ev Event) {
	if r.handler != nil {
		r.handler(ev)
	}
}
