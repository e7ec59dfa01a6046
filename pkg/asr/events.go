package asr

// EventKind identifies a recognition lifecycle event.
type EventKind int

const (
	// EventConnected fires once the gateway handshake completes.
	EventConnected EventKind = iota
	// EventDisconnected fires when the gateway connection ends.
	EventDisconnected
	// EventStart fires when a listening episode begins.
	EventStart
	// EventResult carries an interim or final transcription.
	EventResult
	// EventEnd fires when a listening episode finishes.
	EventEnd
	// EventError carries a recognition failure.
	EventError
	// EventSpeechStart fires on the silence-to-speech edge.
	EventSpeechStart
	// EventSpeechEnd fires on the speech-to-silence edge.
	EventSpeechEnd
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventStart:
		return "start"
	case EventResult:
		return "result"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	case EventSpeechStart:
		return "speech-start"
	case EventSpeechEnd:
		return "speech-end"
	}
	return "unknown"
}

// Event is one recognition lifecycle notification.
type Event struct {
	Kind EventKind

	// Text is the transcription for EventResult, empty otherwise.
	Text string

	// Final reports whether Text is a final (non-interim) result.
	Final bool

	// Confidence is the gateway's score for Text on EventResult,
	// zero when the gateway omits one.
	Confidence float64

	// Err carries the failure for EventError, nil otherwise.
	Err error
}

// Handler receives recognition events. Handlers run on the
// recognizer's internal goroutines and must not block.
type Handler func(Event)
