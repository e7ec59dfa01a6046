package iat

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Frame status codes marking an audio chunk's position within a
// streaming session.
const (
	// StatusFirstFrame opens a recognition session.
	StatusFirstFrame = 0
	// StatusContinue carries mid-session audio.
	StatusContinue = 1
	// StatusLastFrame ends the session; its audio payload may be empty.
	StatusLastFrame = 2
)

// EncodingRaw is the only audio encoding the gateway accepts.
const EncodingRaw = "raw"

// PGSReplace is the progressive hint signaling that the pending buffer
// replaces previously committed text.
const PGSReplace = "apd"

// AudioData is a PCM payload that serializes to/from standard base64
// in JSON, as the wire format requires.
type AudioData []byte

// MarshalJSON implements json.Marshaler.
func (a AudioData) MarshalJSON() ([]byte, error) {
	return []byte(`"` + base64.StdEncoding.EncodeToString(a) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AudioData) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("unmarshal audio data: empty input")
	}
	switch data[0] {
	case 'n': // null
		return nil
	case '"':
		if len(data) < 2 || data[len(data)-1] != '"' {
			return errors.New("unmarshal audio data: invalid string")
		}
		decoded, err := base64.StdEncoding.DecodeString(string(data[1 : len(data)-1]))
		if err != nil {
			return err
		}
		*a = decoded
		return nil
	default:
		return fmt.Errorf("unmarshal audio data: not a string: %s", string(data))
	}
}

// String returns the base64 representation.
func (a AudioData) String() string {
	return base64.StdEncoding.EncodeToString(a)
}

// audioFrame is the outbound wire message wrapping one audio chunk.
type audioFrame struct {
	Data audioFrameData `json:"data"`
}

type audioFrameData struct {
	Status   int       `json:"status"`
	Format   string    `json:"format"`
	Encoding string    `json:"encoding"`
	Audio    AudioData `json:"audio"`
}

// Message is one parsed inbound gateway message: either a recognition
// result or an explicit error.
type Message struct {
	Data  *MessageData `json:"data"`
	Error string       `json:"error,omitempty"`
}

// MessageData carries a recognition result and its frame status;
// StatusLastFrame marks the result as utterance-final.
type MessageData struct {
	Status int     `json:"status"`
	Result *Result `json:"result"`
}

// Result is an incremental transcription: word-level fragments in
// arrival order, an optional progressive hint, and a confidence score.
type Result struct {
	WS         []WordSet `json:"ws"`
	PGS        string    `json:"pgs,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// WordSet holds the candidate words for one position.
type WordSet struct {
	CW []Word `json:"cw"`
}

// Word is a single transcription fragment.
type Word struct {
	W string `json:"w"`
}

// Text concatenates the best candidate of each word set in arrival
// order.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, ws := range r.WS {
		if len(ws.CW) > 0 {
			sb.WriteString(ws.CW[0].W)
		}
	}
	return sb.String()
}

// parseMessage decodes an inbound frame. Non-JSON frames return an
// error; the session drops them since partial frames may legitimately
// be non-JSON during transport hiccups.
func parseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("iat: parse message: %w", err)
	}
	return &msg, nil
}
