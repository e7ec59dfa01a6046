// Package iat implements the streaming speech recognition wire
// protocol: base64 PCM frames go out over a WebSocket with a
// three-state status field (first, continue, last), and incremental
// transcription results come back as JSON messages until the gateway
// reports a final.
package iat
