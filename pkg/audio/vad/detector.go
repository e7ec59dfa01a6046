package vad

import (
	"sync"
	"time"
)

// Default thresholds, tuned against kiosk microphones. The silence
// duration interacts with the aggregator's segment-gap reset; see the
// package documentation before changing either.
const (
	DefaultSilenceThreshold  = 0.015
	DefaultSilenceDuration   = 1500 * time.Millisecond
	DefaultMinSpeechDuration = 500 * time.Millisecond
)

// Config holds the detector thresholds. Zero values fall back to the
// package defaults.
type Config struct {
	// SilenceThreshold is the mean absolute amplitude above which a
	// frame counts as speech.
	SilenceThreshold float64

	// SilenceDuration is how long silence must persist after speech
	// before the utterance is considered finished.
	SilenceDuration time.Duration

	// MinSpeechDuration is the minimum speech run length required to
	// signal end-of-utterance; shorter runs are dropped as noise.
	MinSpeechDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = DefaultSilenceThreshold
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = DefaultSilenceDuration
	}
	if c.MinSpeechDuration <= 0 {
		c.MinSpeechDuration = DefaultMinSpeechDuration
	}
	return c
}

// Hooks receive detector transitions. All callbacks are invoked
// without internal locks held and may call back into the detector.
type Hooks struct {
	// OnSpeechStart fires on the silence-to-speech edge.
	OnSpeechStart func()

	// OnSpeechEnd fires when a speech run ends, qualified or not.
	OnSpeechEnd func()

	// OnEndOfUtterance fires after a qualified speech run (at least
	// MinSpeechDuration long) is followed by SilenceDuration of
	// silence. At most once per contiguous run.
	OnEndOfUtterance func()
}

// Detector classifies audio frames as speech or silence by short-term
// energy and drives end-of-utterance signaling. It is an edge-triggered
// state machine with three states: idle, speaking, and silence-pending
// (speech seen, one-shot silence timer armed).
//
// While suspended, frames are ignored entirely; this is how the caller
// keeps a second end-of-utterance from firing while the first is still
// being acknowledged by the backend.
type Detector struct {
	cfg   Config
	hooks Hooks

	mu             sync.Mutex
	suspended      bool
	speechDetected bool
	speechStart    time.Time
	lastSpeech     time.Time
	silenceTimer   *time.Timer

	now func() time.Time
}

// New creates a Detector with the given thresholds and hooks.
func New(cfg Config, hooks Hooks) *Detector {
	return &Detector{
		cfg:   cfg.withDefaults(),
		hooks: hooks,
		now:   time.Now,
	}
}

// Energy returns the mean absolute amplitude of a frame.
func Energy(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		if v < 0 {
			sum -= float64(v)
		} else {
			sum += float64(v)
		}
	}
	return sum / float64(len(frame))
}

// Process classifies one frame and advances the state machine.
func (d *Detector) Process(frame []float32) {
	d.mu.Lock()
	if d.suspended {
		d.mu.Unlock()
		return
	}

	speaking := Energy(frame) > d.cfg.SilenceThreshold
	now := d.now()

	if speaking {
		d.lastSpeech = now
		started := false
		if !d.speechDetected {
			d.speechDetected = true
			d.speechStart = now
			started = true
		}
		if d.silenceTimer != nil {
			d.silenceTimer.Stop()
			d.silenceTimer = nil
		}
		d.mu.Unlock()
		if started && d.hooks.OnSpeechStart != nil {
			d.hooks.OnSpeechStart()
		}
		return
	}

	if d.speechDetected && d.silenceTimer == nil {
		d.silenceTimer = time.AfterFunc(d.cfg.SilenceDuration, d.silenceElapsed)
	}
	d.mu.Unlock()
}

// silenceElapsed runs when the one-shot silence timer fires with no
// intervening speech frame.
func (d *Detector) silenceElapsed() {
	d.mu.Lock()
	if d.silenceTimer == nil || !d.speechDetected {
		// Timer was cancelled or reset after this fire was scheduled.
		d.mu.Unlock()
		return
	}
	d.silenceTimer = nil
	d.speechDetected = false
	qualified := !d.suspended && d.lastSpeech.Sub(d.speechStart) >= d.cfg.MinSpeechDuration
	d.mu.Unlock()

	if d.hooks.OnSpeechEnd != nil {
		d.hooks.OnSpeechEnd()
	}
	if qualified && d.hooks.OnEndOfUtterance != nil {
		d.hooks.OnEndOfUtterance()
	}
}

// Suspend stops all frame processing until Resume. Any pending silence
// timer is cancelled so it cannot fire against a suspended session.
func (d *Detector) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = true
	d.stopTimerLocked()
}

// Resume re-enables frame processing from the idle state.
func (d *Detector) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = false
	d.speechDetected = false
}

// Suspended reports whether processing is currently suspended.
func (d *Detector) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

// Reset returns the detector to idle and cancels any pending timer.
// Every session exit path calls this so no timer outlives its session.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = false
	d.speechDetected = false
	d.speechStart = time.Time{}
	d.lastSpeech = time.Time{}
	d.stopTimerLocked()
}

func (d *Detector) stopTimerLocked() {
	if d.silenceTimer != nil {
		d.silenceTimer.Stop()
		d.silenceTimer = nil
	}
}
