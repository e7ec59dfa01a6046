// Package vad implements energy-based voice activity detection for the
// recognition pipeline.
//
// The detector watches short-term frame energy and signals
// end-of-utterance after a qualified speech run is followed by a
// configured stretch of silence. Note the coupling with the transcript
// aggregator's segment-gap reset: a silence duration close to the gap
// threshold can make a long mid-sentence pause read as utterance-final.
// The defaults keep the recognizer's observed behavior; treat them as
// tuning values, not contracts.
package vad
