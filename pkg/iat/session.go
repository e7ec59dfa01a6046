package iat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/metastaff/voicekit/pkg/audio/pcm"
)

// State is the session connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateListening
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

const (
	defaultDialTimeout = 5 * time.Second
	defaultCloseGrace  = 20 * time.Millisecond
)

// Config configures a streaming recognition session.
type Config struct {
	// URL is the gateway WebSocket endpoint.
	URL string

	// DialTimeout bounds the connection handshake (default 5s).
	DialTimeout time.Duration

	// Format is the wire audio format (default L16Mono16K). Its MIME
	// string is stamped on every outbound frame.
	Format pcm.Format

	// CloseGrace is how long Stop waits after the last frame before
	// closing the socket, giving the gateway a chance to flush
	// (default 20ms).
	CloseGrace time.Duration

	// Header carries extra handshake headers (auth tokens and the
	// like).
	Header http.Header
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.CloseGrace <= 0 {
		c.CloseGrace = defaultCloseGrace
	}
	return c
}

// Session is one logical listening episode against the recognition
// gateway. It owns the WebSocket connection and the frame-status
// bookkeeping: the first chunk of a session goes out with
// StatusFirstFrame, later chunks with StatusContinue, and SendEnd
// closes the utterance with StatusLastFrame.
//
// A session never redials. When the connection drops, the results
// channel closes, Err reports the cause, and the owner decides whether
// and when to dial again.
type Session struct {
	cfg   Config
	reqID string

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu         sync.Mutex
	state      State
	firstFrame bool
	endSent    bool
	err        error

	results   chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens a session against cfg.URL. It blocks until the handshake
// completes, cfg.DialTimeout elapses, or ctx is cancelled.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("iat: connect %s: %w", cfg.URL, err)
	}

	s := &Session{
		cfg:        cfg,
		reqID:      uuid.NewString(),
		conn:       conn,
		state:      StateConnected,
		firstFrame: true,
		results:    make(chan Message, 32),
		closed:     make(chan struct{}),
	}
	go s.recvLoop()

	slog.Debug("iat session connected", "url", cfg.URL, "reqid", s.reqID)
	return s, nil
}

// ReqID returns the session request ID.
func (s *Session) ReqID() string {
	return s.reqID
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SendChunk transmits one PCM16LE audio chunk, stamping the correct
// frame status. Chunks sent while a final frame is in flight are
// dropped silently; the utterance is already closing.
func (s *Session) SendChunk(audio []byte) error {
	s.mu.Lock()
	if s.state != StateConnected && s.state != StateListening {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.endSent {
		s.mu.Unlock()
		return nil
	}
	status := StatusContinue
	if s.firstFrame {
		status = StatusFirstFrame
		s.firstFrame = false
		s.state = StateListening
	}
	s.mu.Unlock()

	return s.writeFrame(status, audio)
}

// SendEnd transmits the terminal frame with an empty payload,
// requesting the final result for the current utterance. Idempotent:
// while a final frame is in flight, further calls are no-ops so a
// late silence timer cannot close the next utterance.
func (s *Session) SendEnd() error {
	s.mu.Lock()
	if s.endSent {
		s.mu.Unlock()
		return nil
	}
	// StateStopping is allowed: Stop itself relies on SendEnd for the
	// terminal frame after it has claimed the session.
	if s.state != StateConnected && s.state != StateListening && s.state != StateStopping {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.endSent = true
	s.mu.Unlock()

	if err := s.writeFrame(StatusLastFrame, nil); err != nil {
		s.mu.Lock()
		s.endSent = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// EndInFlight reports whether a final frame has been sent and its
// result is still pending.
func (s *Session) EndInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endSent
}

// Rollover resets frame-status bookkeeping after a final result so the
// connection can carry the next utterance: the next chunk goes out as
// a first frame.
func (s *Session) Rollover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateListening {
		s.state = StateConnected
	}
	s.firstFrame = true
	s.endSent = false
}

func (s *Session) writeFrame(status int, audio []byte) error {
	frame := audioFrame{Data: audioFrameData{
		Status:   status,
		Format:   s.cfg.Format.MimeType(),
		Encoding: EncodingRaw,
		Audio:    AudioData(audio),
	}}

	s.writeMu.Lock()
	err := s.conn.WriteJSON(frame)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("iat: send frame (status=%d): %w", status, err)
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("sent audio frame", "status", status, "bytes", len(audio), "reqid", s.reqID)
	}
	return nil
}

// Results returns the inbound message stream. The channel closes when
// the connection ends for any reason; Err then reports the cause.
func (s *Session) Results() <-chan Message {
	return s.results
}

// Err returns the terminal connection error, if any, once Results has
// closed. A nil return means the session closed deliberately.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop ends the session gracefully: it sends the terminal frame if one
// has not gone out yet, waits the close grace, then closes the socket.
// Calling Stop on an already-stopped session is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateDisconnected || s.state == StateStopping {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	s.mu.Unlock()

	if err := s.SendEnd(); err != nil && err != ErrNotConnected {
		slog.Debug("stop: final frame send failed", "err", err, "reqid", s.reqID)
	}

	select {
	case <-time.After(s.cfg.CloseGrace):
	case <-ctx.Done():
	}

	s.close(nil)
	return nil
}

// Abort closes the socket immediately, skipping the final-frame
// handshake. Used for hard resets where resource release matters more
// than a clean utterance end.
func (s *Session) Abort() error {
	s.close(nil)
	return nil
}

func (s *Session) close(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateDisconnected
		if err != nil {
			s.err = err
		}
		s.mu.Unlock()
		close(s.closed)
		s.conn.Close()
	})
}

func (s *Session) recvLoop() {
	defer close(s.results)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				// Deliberate close; not an error.
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					s.close(fmt.Errorf("iat: read message: %w", err))
				} else {
					s.close(nil)
				}
			}
			return
		}

		msg, perr := parseMessage(data)
		if perr != nil {
			// Partial frames may be non-JSON during transport hiccups;
			// drop them rather than killing the session.
			slog.Debug("dropping unparseable frame", "err", perr, "reqid", s.reqID)
			continue
		}

		select {
		case s.results <- *msg:
		case <-s.closed:
			return
		}
	}
}
