package resample

import (
	"testing"

	"github.com/metastaff/voicekit/pkg/audio/pcm"
)

func TestChunker_ExactBoundary48k(t *testing.T) {
	var chunks [][]byte
	c := NewChunker(pcm.L16Mono16K, 640, func(chunk []byte) {
		chunks = append(chunks, chunk)
	})

	// 1280 source samples at 48kHz: not enough for one 640-sample
	// 16kHz chunk (needs 1920).
	c.Push(make([]float32, 1280), 48000)
	if len(chunks) != 0 {
		t.Fatalf("chunks after 1280 samples = %d, want 0", len(chunks))
	}

	// Reaching 1920 produces exactly one 1280-byte chunk.
	c.Push(make([]float32, 640), 48000)
	if len(chunks) != 1 {
		t.Fatalf("chunks after 1920 samples = %d, want 1", len(chunks))
	}
	if len(chunks[0]) != 1280 {
		t.Fatalf("chunk size = %d bytes, want 1280", len(chunks[0]))
	}
	if c.Residual() != 0 {
		t.Fatalf("residual = %v, want 0 for integer ratio", c.Residual())
	}
	if c.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", c.Pending())
	}
}

func TestChunker_ResidualBounds44k1(t *testing.T) {
	// 44100/16000 = 2.75625; with 512-sample chunks the ideal source
	// count per chunk is 1411.2, so every boundary carries a fraction.
	const ratio = 44100.0 / 16000.0

	consumed := 0
	c := NewChunker(pcm.L16Mono16K, 512, func(chunk []byte) {})

	pushed := 0
	for i := 0; i < 200; i++ {
		before := c.Pending()
		c.Push(make([]float32, 441), 44100)
		pushed += 441
		consumed += before + 441 - c.Pending()

		r := c.Residual()
		if r < -1 || r >= ratio {
			t.Fatalf("iteration %d: residual %v out of [-1, %v)", i, r, ratio)
		}
	}

	// Conservation: every pushed sample was either consumed by a chunk
	// or is still pending.
	if consumed+c.Pending() != pushed {
		t.Fatalf("consumed %d + pending %d != pushed %d", consumed, c.Pending(), pushed)
	}
}

func TestChunker_NoLossAcrossFlush(t *testing.T) {
	var outBytes int
	c := NewChunker(pcm.L16Mono16K, 640, func(chunk []byte) {
		outBytes += len(chunk)
	})

	// 48000 source samples = 1 second @48k = 16000 target samples.
	for i := 0; i < 75; i++ {
		c.Push(make([]float32, 640), 48000)
	}
	c.Flush()

	outSamples := outBytes / 2
	if outSamples != 16000 {
		t.Fatalf("output samples = %d, want 16000", outSamples)
	}
	if c.Pending() != 0 {
		t.Fatalf("pending after flush = %d, want 0", c.Pending())
	}
	if c.Residual() != 0 {
		t.Fatalf("residual after flush = %v, want 0", c.Residual())
	}
}

func TestChunker_PassthroughSameRate(t *testing.T) {
	var chunks [][]byte
	c := NewChunker(pcm.L16Mono16K, 640, func(chunk []byte) {
		chunks = append(chunks, chunk)
	})

	samples := make([]float32, 640)
	for i := range samples {
		samples[i] = 0.5
	}
	c.Push(samples, 16000)

	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	decoded := pcm.DecodeSamples(chunks[0])
	if len(decoded) != 640 {
		t.Fatalf("decoded samples = %d, want 640", len(decoded))
	}
	if diff := decoded[0] - 0.5; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("decoded[0] = %v, want ~0.5", decoded[0])
	}
}

func TestResampleLinear_HalvesLength(t *testing.T) {
	in := make([]float32, 960)
	for i := range in {
		in[i] = float32(i) / 960
	}
	out := resampleLinear(in, 48000, 16000)
	if len(out) != 320 {
		t.Fatalf("len = %d, want 320", len(out))
	}
	// Monotone input stays monotone through linear interpolation.
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Fatalf("output not monotone at %d: %v < %v", i, out[i], out[i-1])
		}
	}
}

func TestChunker_ResetDropsState(t *testing.T) {
	var chunks int
	c := NewChunker(pcm.L16Mono16K, 640, func([]byte) { chunks++ })
	c.Push(make([]float32, 1000), 48000)
	c.Reset()
	if c.Pending() != 0 {
		t.Fatalf("pending after reset = %d, want 0", c.Pending())
	}
	c.Flush()
	if chunks != 0 {
		t.Fatalf("chunks = %d, want 0 after reset+flush", chunks)
	}
}
