// Package asr assembles the streaming recognition pipeline. A
// Recognizer pulls frames from an audio capture source, runs energy
// based voice activity detection, resamples and encodes audio for the
// gateway, and folds incremental results into interim and final
// transcripts. A Supervisor sits above the recognizer and keeps it
// running across utterances, errors, and synthesized playback.
package asr
