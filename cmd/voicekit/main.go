// Package main provides the voicekit CLI tool.
//
// Usage:
//
//	voicekit [flags] <command> [args]
//
// Commands:
//
//	listen     - Stream microphone audio to the recognition gateway
//	transcribe - Transcribe an audio file
//	record     - Record microphone audio to a WAV file
//	config     - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.voicekit/voicekit/
//	Use 'voicekit config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/metastaff/voicekit/cmd/voicekit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
