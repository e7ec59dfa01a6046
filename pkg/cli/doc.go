// Package cli provides shared plumbing for voicekit command line
// tools: context-based configuration stored under ~/.voicekit,
// structured output in YAML or JSON, request file loading, and
// terminal UI components for live transcript display.
package cli
