package resample

import (
	"math"

	"github.com/metastaff/voicekit/pkg/audio/pcm"
	"github.com/metastaff/voicekit/pkg/buffer"
)

// DefaultChunkSamples is the number of target-rate samples per emitted
// chunk: 640 samples at 16kHz is 40ms, i.e. 1280 bytes of PCM16.
const DefaultChunkSamples = 640

// Chunker accumulates raw capture samples, converts them to the target
// rate and bit depth, and emits fixed-size wire chunks.
//
// The conversion consumes floor(targetSamples*ratio + residual) source
// samples per chunk and carries the fractional remainder into the next
// chunk. The residual is what keeps long sessions drift-free when the
// source rate is not an integer multiple of the target rate: without
// it, rounding at every chunk boundary loses or duplicates samples at
// a steady rate. Residual stays within [-1, ratio).
//
// Chunker is not safe for concurrent use; the capture callback and the
// flush routine are expected to run on the same dispatch queue.
type Chunker struct {
	target  pcm.Format
	samples int
	emit    func(chunk []byte)

	queue    *buffer.Buffer[float32]
	srcRate  int
	residual float64
}

// NewChunker creates a Chunker emitting chunks of n target-rate
// samples (DefaultChunkSamples if n <= 0) encoded as PCM16LE.
func NewChunker(target pcm.Format, n int, emit func(chunk []byte)) *Chunker {
	if n <= 0 {
		n = DefaultChunkSamples
	}
	return &Chunker{
		target:  target,
		samples: n,
		emit:    emit,
		queue:   buffer.N[float32](n * 4),
	}
}

// Push appends source samples recorded at srcRate and emits as many
// complete chunks as the accumulated data allows.
func (c *Chunker) Push(samples []float32, srcRate int) {
	if len(samples) == 0 {
		return
	}
	if srcRate != c.srcRate {
		// Rate change invalidates the carried residual.
		c.srcRate = srcRate
		c.residual = 0
	}
	c.queue.Write(samples)

	ratio := float64(c.srcRate) / float64(c.target.SampleRate())
	for {
		required := int(math.Floor(float64(c.samples)*ratio + c.residual))
		if required <= 0 {
			return
		}
		chunk, ok := c.queue.TakeExact(required)
		if !ok {
			return
		}
		c.emit(pcm.EncodeSamples(resampleLinear(chunk, c.srcRate, c.target.SampleRate())))

		ideal := float64(c.samples)*ratio + c.residual
		c.residual = ideal - float64(required)
	}
}

// Flush converts and emits whatever remains in the queue as one final
// (possibly short) chunk, then clears all conversion state.
func (c *Chunker) Flush() {
	rest := c.queue.TakeAll()
	if len(rest) > 0 && c.srcRate > 0 {
		c.emit(pcm.EncodeSamples(resampleLinear(rest, c.srcRate, c.target.SampleRate())))
	}
	c.residual = 0
}

// Reset drops all buffered samples and conversion state without
// emitting anything.
func (c *Chunker) Reset() {
	c.queue.Reset()
	c.residual = 0
}

// Pending returns the number of source samples awaiting conversion.
func (c *Chunker) Pending() int {
	return c.queue.Len()
}

// Residual exposes the fractional sample carry for invariant checks.
func (c *Chunker) Residual() float64 {
	return c.residual
}

// resampleLinear converts samples from fromRate to toRate by linear
// interpolation. Equal rates pass through unchanged.
func resampleLinear(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	ratio := float64(fromRate) / float64(toRate)
	n := int(math.Round(float64(len(in)) / ratio))
	out := make([]float32, n)
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		if idx+1 < len(in) {
			out[i] = in[idx]*(1-frac) + in[idx+1]*frac
		} else if idx < len(in) {
			out[i] = in[idx]
		}
	}
	return out
}
