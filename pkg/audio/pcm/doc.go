// Package pcm defines the PCM audio formats used across the capture,
// resampling and wire-protocol layers, along with sample <-> byte
// conversion helpers for 16-bit little-endian mono audio.
package pcm
