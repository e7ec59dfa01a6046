// Package audio provides audio processing utilities.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - pcm: PCM audio format handling and float/int16 conversion
//   - capture: audio frame sources (subprocess and stream based)
//   - resample: chunked and offline sample-rate conversion
//   - vad: energy based voice activity detection
package audio
