package pcm

import (
	"testing"
	"time"
)

func TestFormatMath(t *testing.T) {
	tests := []struct {
		format    Format
		rate      int
		bytesRate int
		mime      string
	}{
		{L16Mono16K, 16000, 32000, "audio/L16;rate=16000"},
		{L16Mono24K, 24000, 48000, "audio/L16;rate=24000"},
		{L16Mono44K1, 44100, 88200, "audio/L16;rate=44100"},
		{L16Mono48K, 48000, 96000, "audio/L16;rate=48000"},
	}

	for _, tt := range tests {
		if got := tt.format.SampleRate(); got != tt.rate {
			t.Errorf("%v.SampleRate() = %d, want %d", tt.format, got, tt.rate)
		}
		if got := tt.format.BytesRate(); got != tt.bytesRate {
			t.Errorf("%v.BytesRate() = %d, want %d", tt.format, got, tt.bytesRate)
		}
		if got := tt.format.MimeType(); got != tt.mime {
			t.Errorf("%v.MimeType() = %q, want %q", tt.format, got, tt.mime)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	// 1280 bytes = 640 samples @ 16kHz = 40ms
	if got := L16Mono16K.Duration(1280); got != 40*time.Millisecond {
		t.Errorf("Duration(1280) = %v, want 40ms", got)
	}
	if got := L16Mono16K.BytesInDuration(40 * time.Millisecond); got != 1280 {
		t.Errorf("BytesInDuration(40ms) = %d, want 1280", got)
	}
	if got := L16Mono48K.SamplesInDuration(time.Second); got != 48000 {
		t.Errorf("SamplesInDuration(1s) = %d, want 48000", got)
	}
}

func TestEncodeDecodeSamples(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1, 2, -2}
	b := pcmRoundTrip(in)

	if len(b) != len(in) {
		t.Fatalf("round trip length = %d, want %d", len(b), len(in))
	}
	// Out-of-range inputs clamp to full scale.
	if b[5] != b[3] {
		t.Errorf("sample 2.0 = %v, want clamped to %v", b[5], b[3])
	}
	if b[6] != b[4] {
		t.Errorf("sample -2.0 = %v, want clamped to %v", b[6], b[4])
	}
	for i, v := range []float32{0, 0.5, -0.5}[:3] {
		if diff := b[i] - v; diff > 1e-3 || diff < -1e-3 {
			t.Errorf("sample %d = %v, want ~%v", i, b[i], v)
		}
	}
}

func pcmRoundTrip(in []float32) []float32 {
	return DecodeSamples(EncodeSamples(in))
}
