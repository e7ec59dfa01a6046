package vad

import (
	"sync/atomic"
	"testing"
	"time"
)

func frame(amplitude float32, n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = amplitude
	}
	return f
}

func testConfig() Config {
	return Config{
		SilenceThreshold:  0.015,
		SilenceDuration:   30 * time.Millisecond,
		MinSpeechDuration: 20 * time.Millisecond,
	}
}

func TestEnergy(t *testing.T) {
	if got := Energy(nil); got != 0 {
		t.Fatalf("Energy(nil) = %v, want 0", got)
	}
	if got := Energy([]float32{0.5, -0.5}); got != 0.5 {
		t.Fatalf("Energy = %v, want 0.5", got)
	}
}

func TestDetector_EndOfUtteranceOncePerRun(t *testing.T) {
	var ends atomic.Int32
	d := New(testConfig(), Hooks{
		OnEndOfUtterance: func() { ends.Add(1) },
	})

	// Speech run longer than MinSpeechDuration.
	for i := 0; i < 5; i++ {
		d.Process(frame(0.1, 64))
		time.Sleep(8 * time.Millisecond)
	}
	// Silence: timer arms once and fires once.
	for i := 0; i < 5; i++ {
		d.Process(frame(0.001, 64))
		time.Sleep(8 * time.Millisecond)
	}
	time.Sleep(60 * time.Millisecond)

	if got := ends.Load(); got != 1 {
		t.Fatalf("end-of-utterance fired %d times, want 1", got)
	}

	// More silence after the run ended must not re-fire.
	for i := 0; i < 5; i++ {
		d.Process(frame(0.001, 64))
	}
	time.Sleep(60 * time.Millisecond)
	if got := ends.Load(); got != 1 {
		t.Fatalf("end-of-utterance fired %d times after idle silence, want 1", got)
	}
}

func TestDetector_ShortRunDropped(t *testing.T) {
	var ends, speechEnds atomic.Int32
	d := New(testConfig(), Hooks{
		OnSpeechEnd:      func() { speechEnds.Add(1) },
		OnEndOfUtterance: func() { ends.Add(1) },
	})

	// A single speech frame: run length ~0, below MinSpeechDuration.
	d.Process(frame(0.1, 64))
	d.Process(frame(0.001, 64))
	time.Sleep(60 * time.Millisecond)

	if got := ends.Load(); got != 0 {
		t.Fatalf("end-of-utterance fired %d times for short run, want 0", got)
	}
	if got := speechEnds.Load(); got != 1 {
		t.Fatalf("speech-end fired %d times, want 1", got)
	}
}

func TestDetector_SpeechCancelsTimer(t *testing.T) {
	var ends atomic.Int32
	d := New(testConfig(), Hooks{
		OnEndOfUtterance: func() { ends.Add(1) },
	})

	for i := 0; i < 4; i++ {
		d.Process(frame(0.1, 64))
		time.Sleep(8 * time.Millisecond)
	}
	// Brief silence, then speech again before the timer elapses.
	d.Process(frame(0.001, 64))
	time.Sleep(10 * time.Millisecond)
	d.Process(frame(0.1, 64))
	time.Sleep(60 * time.Millisecond)

	if got := ends.Load(); got != 0 {
		t.Fatalf("end-of-utterance fired %d times, want 0 (timer cancelled)", got)
	}
}

func TestDetector_SuspendBlocksProcessing(t *testing.T) {
	var starts, ends atomic.Int32
	d := New(testConfig(), Hooks{
		OnSpeechStart:    func() { starts.Add(1) },
		OnEndOfUtterance: func() { ends.Add(1) },
	})

	d.Suspend()
	for i := 0; i < 5; i++ {
		d.Process(frame(0.1, 64))
		time.Sleep(8 * time.Millisecond)
	}
	d.Process(frame(0.001, 64))
	time.Sleep(60 * time.Millisecond)

	if starts.Load() != 0 || ends.Load() != 0 {
		t.Fatalf("suspended detector fired starts=%d ends=%d, want 0/0",
			starts.Load(), ends.Load())
	}

	d.Resume()
	d.Process(frame(0.1, 64))
	if starts.Load() != 1 {
		t.Fatalf("speech-start after resume = %d, want 1", starts.Load())
	}
}

func TestDetector_ResetClearsPendingTimer(t *testing.T) {
	var ends atomic.Int32
	d := New(testConfig(), Hooks{
		OnEndOfUtterance: func() { ends.Add(1) },
	})

	for i := 0; i < 4; i++ {
		d.Process(frame(0.1, 64))
		time.Sleep(8 * time.Millisecond)
	}
	d.Process(frame(0.001, 64)) // arms the timer
	d.Reset()
	time.Sleep(60 * time.Millisecond)

	if got := ends.Load(); got != 0 {
		t.Fatalf("end-of-utterance fired %d times after reset, want 0", got)
	}
}
