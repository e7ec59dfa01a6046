package resample

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Convert resamples a complete buffer of mono samples from fromRate to
// toRate using a high-quality polyphase resampler. Unlike the chunked
// linear path, this is meant for offline material (file transcription),
// where latency does not matter and quality does.
func Convert(samples []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(fromRate),
		OutputRate: float64(toRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resample: create resampler: %w", err)
	}

	in := make([]float64, len(samples))
	for i, v := range samples {
		in[i] = float64(v)
	}
	out, err := rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample: process: %w", err)
	}

	result := make([]float32, len(out))
	for i, v := range out {
		result[i] = float32(v)
	}
	return result, nil
}
