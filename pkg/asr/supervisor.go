package asr

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultRestartDelay is the pause before auto-restarting
	// recognition after an episode ends.
	DefaultRestartDelay = 100 * time.Millisecond

	// DefaultInterimDebounce batches rapid interim updates before they
	// reach the display callback.
	DefaultInterimDebounce = 120 * time.Millisecond
)

// DefaultRetryDelays is the escalating wait ladder between restart
// attempts after a recognition error. Once the ladder is exhausted the
// failure is terminal.
var DefaultRetryDelays = []time.Duration{200 * time.Millisecond, 800 * time.Millisecond, 2 * time.Second}

// trailingPunct strips utterance-final punctuation for duplicate
// comparison, so "好的。" and "好的" count as the same transcript.
var trailingPunct = regexp.MustCompile(`[。，！？\s]+$`)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// StartOnSynthesisEnd defers the first recognition start until the
	// first synthesis-finished notification, so a greeting can play
	// out before the microphone goes live.
	StartOnSynthesisEnd bool

	// RestartDelay is the pause before auto-restart after an episode
	// ends (default 100ms).
	RestartDelay time.Duration

	// RetryDelays is the wait ladder between restart attempts after an
	// error (default 200ms, 800ms, 2s).
	RetryDelays []time.Duration

	// InterimDebounce batches interim display updates (default 120ms).
	InterimDebounce time.Duration

	// OnTranscript receives each settled transcript exactly once;
	// repeats of the previous transcript (modulo trailing punctuation)
	// are dropped.
	OnTranscript func(text string)

	// OnDisplay receives debounced interim transcripts for live
	// display.
	OnDisplay func(text string)

	// OnFatal fires when the retry ladder is exhausted.
	OnFatal func(err error)
}

// Supervisor keeps a Recognizer running across episode ends, gateway
// drops, and synthesis playback. It consumes the recognizer's event
// stream, restarts listening when nothing is playing, retries failed
// starts on an escalating ladder, and dedupes/debounces transcripts on
// the way to the consumer.
//
// Wire it up by constructing the Supervisor first, routing the
// recognizer's events into Handle, then calling Bind:
//
//	sup := asr.NewSupervisor(supCfg)
//	rec, err := asr.New(asr.Config{OnEvent: sup.Handle, ...})
//	sup.Bind(rec)
type Supervisor struct {
	cfg SupervisorConfig

	mu           sync.Mutex
	rec          *Recognizer
	synthActive  bool
	firstStarted bool
	holding      bool
	holdBuffer   string
	lastFinal    string
	lastInterim  string
	interimTimer *time.Timer
	restartTimer *time.Timer
	retryAttempt int
	retryPending bool
	closed       bool
}

// NewSupervisor builds a supervisor. Bind must be called before any
// event arrives.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.InterimDebounce <= 0 {
		cfg.InterimDebounce = DefaultInterimDebounce
	}
	if len(cfg.RetryDelays) == 0 {
		cfg.RetryDelays = DefaultRetryDelays
	}
	s := &Supervisor{cfg: cfg}
	if !cfg.StartOnSynthesisEnd {
		s.firstStarted = true
	}
	return s
}

// Bind attaches the recognizer the supervisor controls.
func (s *Supervisor) Bind(rec *Recognizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
}

// Start begins recognition immediately, regardless of the first-start
// gate.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	s.firstStarted = true
	rec := s.rec
	s.mu.Unlock()
	if rec == nil {
		return nil
	}
	return rec.Start(ctx)
}

// Handle consumes one recognizer event. Pass it as the recognizer's
// event handler.
func (s *Supervisor) Handle(ev Event) {
	switch ev.Kind {
	case EventResult:
		s.handleResult(ev)
	case EventEnd:
		s.handleEnd()
	case EventError:
		s.handleError(ev)
	}
}

func (s *Supervisor) handleResult(ev Event) {
	text := strings.TrimSpace(ev.Text)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.holding {
		// Push-to-talk buffers the best transcript for commit on
		// release.
		s.holdBuffer = text
		display := s.cfg.OnDisplay
		s.mu.Unlock()
		if display != nil && text != "" {
			display(text)
		}
		return
	}

	if ev.Final {
		if s.interimTimer != nil {
			s.interimTimer.Stop()
			s.interimTimer = nil
		}
		if text == "" || trailingPunct.ReplaceAllString(text, "") == trailingPunct.ReplaceAllString(s.lastFinal, "") {
			s.mu.Unlock()
			return
		}
		s.lastFinal = text
		cb := s.cfg.OnTranscript
		s.mu.Unlock()
		if cb != nil {
			cb(text)
		}
		return
	}

	if text == "" || text == s.lastInterim {
		s.mu.Unlock()
		return
	}
	s.lastInterim = text
	if s.interimTimer != nil {
		s.interimTimer.Stop()
	}
	s.interimTimer = time.AfterFunc(s.cfg.InterimDebounce, func() {
		if cb := s.cfg.OnDisplay; cb != nil {
			cb(text)
		}
	})
	s.mu.Unlock()
}

func (s *Supervisor) handleEnd() {
	s.mu.Lock()
	if s.closed || s.synthActive || !s.firstStarted {
		s.mu.Unlock()
		return
	}
	s.retryAttempt = 0
	if s.restartTimer != nil {
		s.restartTimer.Stop()
	}
	s.restartTimer = time.AfterFunc(s.cfg.RestartDelay, s.restart)
	s.mu.Unlock()
}

func (s *Supervisor) handleError(ev Event) {
	slog.Debug("recognition error", "err", ev.Err)
	s.mu.Lock()
	if s.closed || s.synthActive || !s.firstStarted || s.retryPending {
		s.mu.Unlock()
		return
	}
	s.retryPending = true
	s.retryAttempt = 0
	s.mu.Unlock()
	go s.retry()
}

// retry attempts a restart, walking the delay ladder on consecutive
// failures.
func (s *Supervisor) retry() {
	s.mu.Lock()
	rec := s.rec
	attempt := s.retryAttempt
	delays := s.cfg.RetryDelays
	closed := s.closed
	s.mu.Unlock()
	if closed || rec == nil {
		return
	}

	err := rec.Start(context.Background())
	if err == nil {
		s.mu.Lock()
		s.retryPending = false
		s.retryAttempt = 0
		s.mu.Unlock()
		return
	}

	if attempt >= len(delays) {
		s.mu.Lock()
		s.retryPending = false
		fatal := s.cfg.OnFatal
		s.mu.Unlock()
		slog.Debug("recognition restart attempts exhausted", "err", err)
		if fatal != nil {
			fatal(err)
		}
		return
	}

	s.mu.Lock()
	s.retryAttempt = attempt + 1
	delay := delays[attempt]
	s.restartTimer = time.AfterFunc(delay, s.retry)
	s.mu.Unlock()
}

func (s *Supervisor) restart() {
	s.mu.Lock()
	rec := s.rec
	closed := s.closed || s.synthActive
	s.mu.Unlock()
	if closed || rec == nil || rec.Listening() {
		return
	}
	if err := rec.Start(context.Background()); err != nil {
		slog.Debug("auto restart failed", "err", err)
	}
}

// NotifySynthesisStart tells the supervisor synthesized playback
// began. Recognition keeps running so the speaker can interrupt, but
// stale partial transcripts are cleared.
func (s *Supervisor) NotifySynthesisStart() {
	s.mu.Lock()
	s.synthActive = true
	s.lastInterim = ""
	rec := s.rec
	s.mu.Unlock()
	if rec != nil {
		rec.ClearPartial()
	}
}

// NotifySynthesisEnd tells the supervisor playback finished.
// Recognition (re)starts if it is not already running; the first call
// also releases the first-start gate.
func (s *Supervisor) NotifySynthesisEnd() {
	s.mu.Lock()
	s.synthActive = false
	s.lastInterim = ""
	s.firstStarted = true
	rec := s.rec
	closed := s.closed
	s.mu.Unlock()
	if closed || rec == nil {
		return
	}
	rec.ClearPartial()
	if !rec.Listening() {
		if err := rec.Start(context.Background()); err != nil {
			slog.Debug("start after playback failed", "err", err)
		}
	}
}

// NotifySynthesisError is playback failure, treated like playback end
// for recovery purposes.
func (s *Supervisor) NotifySynthesisError() {
	s.NotifySynthesisEnd()
}

// HoldStart begins a push-to-talk capture: transcripts are buffered
// instead of committed until HoldEnd.
func (s *Supervisor) HoldStart(ctx context.Context) error {
	s.mu.Lock()
	s.holding = true
	s.holdBuffer = ""
	s.firstStarted = true
	rec := s.rec
	s.mu.Unlock()
	if rec == nil || rec.Listening() {
		return nil
	}
	return rec.Start(ctx)
}

// HoldEnd releases a push-to-talk capture and commits the best
// transcript seen while held. It returns the committed text, empty if
// nothing was recognized.
func (s *Supervisor) HoldEnd() string {
	s.mu.Lock()
	if !s.holding {
		s.mu.Unlock()
		return ""
	}
	s.holding = false
	text := strings.TrimSpace(s.holdBuffer)
	s.holdBuffer = ""
	var cb func(string)
	if text != "" {
		s.lastFinal = text
		cb = s.cfg.OnTranscript
	}
	s.mu.Unlock()
	if cb != nil {
		cb(text)
	}
	return text
}

// Close stops supervision: pending timers are cancelled and the
// recognizer is stopped. The supervisor ignores events afterwards.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.interimTimer != nil {
		s.interimTimer.Stop()
		s.interimTimer = nil
	}
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	rec := s.rec
	s.mu.Unlock()
	if rec != nil {
		return rec.Stop(context.Background())
	}
	return nil
}
