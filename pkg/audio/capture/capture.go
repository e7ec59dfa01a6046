package capture

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnsupported is returned when no usable capture backend exists
	// on this system.
	ErrUnsupported = errors.New("capture: no capture backend available")

	// ErrPermission is returned when the capture device is present but
	// access to it was denied.
	ErrPermission = errors.New("capture: microphone access denied")
)

// DefaultFrameSize is the number of samples per capture frame,
// roughly 85ms at 48kHz.
const DefaultFrameSize = 4096

// FrameSource produces fixed-size frames of float32 audio samples.
// Implementations must tolerate repeated Start/Stop cycles; Close
// releases the underlying device or process for good.
type FrameSource interface {
	// Start begins frame delivery. onFrame is invoked sequentially
	// from a single goroutine for each captured frame.
	Start(onFrame func([]float32)) error

	// Stop halts frame delivery. Idempotent. The source stays
	// acquired and can be started again.
	Stop() error

	// SampleRate returns the source sample rate in Hz.
	SampleRate() int

	// Close releases the source permanently.
	Close() error
}

// Bridge owns the capture lifecycle around a FrameSource: it keeps the
// source acquired between captures (re-acquisition is expensive) and
// guards start/stop re-entrancy so stray callbacks after a stop become
// no-ops.
type Bridge struct {
	mu        sync.Mutex
	src       FrameSource
	capturing bool
	destroyed bool
}

// NewBridge wraps an already-acquired FrameSource.
func NewBridge(src FrameSource) *Bridge {
	return &Bridge{src: src}
}

// StartCapture begins delivering frames to onFrame. Starting while a
// capture is already running is an error; callers stop first.
func (b *Bridge) StartCapture(onFrame func([]float32)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return fmt.Errorf("capture: start on destroyed bridge")
	}
	if b.capturing {
		return fmt.Errorf("capture: already capturing")
	}
	if err := b.src.Start(func(frame []float32) {
		b.mu.Lock()
		active := b.capturing
		b.mu.Unlock()
		if !active {
			return
		}
		onFrame(frame)
	}); err != nil {
		return err
	}
	b.capturing = true
	return nil
}

// StopCapture halts frame delivery. Idempotent; the source stays
// acquired so a subsequent StartCapture is cheap.
func (b *Bridge) StopCapture() {
	b.mu.Lock()
	if !b.capturing {
		b.mu.Unlock()
		return
	}
	b.capturing = false
	src := b.src
	b.mu.Unlock()
	src.Stop()
}

// SampleRate returns the source sample rate in Hz.
func (b *Bridge) SampleRate() int {
	return b.src.SampleRate()
}

// Capturing reports whether a capture is currently running.
func (b *Bridge) Capturing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capturing
}

// Destroy stops any running capture and releases the source. The
// bridge cannot be reused afterwards.
func (b *Bridge) Destroy() error {
	b.StopCapture()
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return nil
	}
	b.destroyed = true
	src := b.src
	b.mu.Unlock()
	return src.Close()
}
