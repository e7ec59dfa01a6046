package cli

import (
	"strings"

	"github.com/metastaff/voicekit/pkg/buffer"
)

// LogWriter implements io.Writer and captures log output for later
// display. It keeps the most recent lines and notifies via a channel.
type LogWriter struct {
	buf *buffer.Ring[string]
	ch  chan string
}

// NewLogWriter creates a new log writer keeping maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{
		buf: buffer.RingN[string](maxLines),
		ch:  make(chan string, 100),
	}
}

// Write implements io.Writer, splitting multi-line input.
func (w *LogWriter) Write(p []byte) (n int, err error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		w.buf.Add(line)
		select {
		case w.ch <- line:
		default:
		}
	}
	return len(p), nil
}

// Lines returns all buffered lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.buf.Items()
}

// Notify returns the channel receiving each new line. Lines are
// dropped from the channel (never from the buffer) if the receiver
// falls behind.
func (w *LogWriter) Notify() <-chan string {
	return w.ch
}
