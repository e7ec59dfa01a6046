// Package resample converts captured audio to the fixed wire format.
//
// Chunker is the real-time path: linear-interpolation rate conversion
// with fractional-sample residual tracking so chunk boundaries never
// drift against the source clock. Convert is the offline path, a
// high-quality whole-buffer resampler for file transcription.
package resample
