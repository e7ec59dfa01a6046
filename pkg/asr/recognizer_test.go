package asr

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/metastaff/voicekit/pkg/audio/capture"
	"github.com/metastaff/voicekit/pkg/audio/pcm"
	"github.com/metastaff/voicekit/pkg/audio/vad"
)

// pcmTone renders n samples of constant amplitude as PCM16LE bytes.
func pcmTone(n int, amplitude float32) []byte {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return pcm.EncodeSamples(samples)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) wait(t *testing.T, timeout time.Duration, match func(Event) bool) Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		for _, ev := range l.events {
			if match(ev) {
				l.mu.Unlock()
				return ev
			}
		}
		l.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for event")
	return Event{}
}

func (l *eventLog) finals() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		if ev.Kind == EventResult && ev.Final {
			out = append(out, ev.Text)
		}
	}
	return out
}

// recognitionGateway answers audio frames and delivers a canned result
// once the final frame arrives.
func recognitionGateway(t *testing.T) *httptest.Server {
	t.Helper()
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		answered := false
		for {
			var frame struct {
				Data struct {
					Status int `json:"status"`
				} `json:"data"`
			}
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Data.Status != 2 {
				continue
			}
			if answered {
				// Trailing end frames from episode close carry no new
				// speech; answer with an empty final.
				conn.WriteMessage(websocket.TextMessage, []byte(
					`{"data":{"status":2,"result":{"ws":[]}}}`))
				continue
			}
			answered = true
			conn.WriteMessage(websocket.TextMessage, []byte(
				`{"data":{"status":1,"result":{"ws":[{"cw":[{"w":"测试"}]}]}}}`))
			conn.WriteMessage(websocket.TextMessage, []byte(
				`{"data":{"status":2,"result":{"ws":[],"confidence":0.87}}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsAddr(srv *httptest.Server) string {
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

func TestRecognizerEndToEnd(t *testing.T) {
	srv := recognitionGateway(t)

	// 120ms of speech then enough silence for the detector to close
	// the utterance, paced at the source rate.
	var audio bytes.Buffer
	audio.Write(pcmTone(1920, 0.3))
	audio.Write(pcmTone(3200, 0))
	src := capture.NewStreamSource(&audio, pcm.L16Mono16K,
		capture.WithFrameSize(256), capture.WithRealtime(true))

	var log eventLog
	rec, err := New(Config{
		URL:    wsAddr(srv),
		Source: src,
		Format: pcm.L16Mono16K,
		VAD: vad.Config{
			SilenceThreshold:  0.015,
			SilenceDuration:   40 * time.Millisecond,
			MinSpeechDuration: 30 * time.Millisecond,
		},
		OnEvent: log.add,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer rec.Destroy()

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !rec.Listening() {
		t.Fatal("recognizer should report listening after start")
	}

	log.wait(t, 3*time.Second, func(ev Event) bool { return ev.Kind == EventSpeechStart })
	final := log.wait(t, 3*time.Second, func(ev Event) bool {
		return ev.Kind == EventResult && ev.Final
	})
	if final.Text != "测试" {
		t.Fatalf("final text = %q, want 测试", final.Text)
	}
	if final.Confidence != 0.87 {
		t.Fatalf("final confidence = %v, want 0.87", final.Confidence)
	}

	// The episode closes itself shortly after the final result.
	log.wait(t, 3*time.Second, func(ev Event) bool { return ev.Kind == EventEnd })
	log.wait(t, 3*time.Second, func(ev Event) bool { return ev.Kind == EventDisconnected })

	if finals := log.finals(); len(finals) != 1 {
		t.Fatalf("finals = %v, want exactly one", finals)
	}
}

func TestRecognizerStopTwice(t *testing.T) {
	srv := recognitionGateway(t)

	src := capture.NewStreamSource(bytes.NewReader(pcmTone(16000, 0)), pcm.L16Mono16K,
		capture.WithRealtime(true))

	var log eventLog
	rec, err := New(Config{
		URL:     wsAddr(srv),
		Source:  src,
		OnEvent: log.add,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer rec.Destroy()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	log.wait(t, 3*time.Second, func(ev Event) bool { return ev.Kind == EventEnd })
	if rec.Listening() {
		t.Fatal("recognizer still listening after stop")
	}
}

func TestRecognizerAbortBeforeAudio(t *testing.T) {
	srv := recognitionGateway(t)

	src := capture.NewStreamSource(bytes.NewReader(nil), pcm.L16Mono16K)
	var log eventLog
	rec, err := New(Config{
		URL:     wsAddr(srv),
		Source:  src,
		OnEvent: log.add,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer rec.Destroy()

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	rec.Abort()

	log.wait(t, 3*time.Second, func(ev Event) bool { return ev.Kind == EventDisconnected })
	if rec.Listening() {
		t.Fatal("recognizer still listening after abort")
	}
}

func TestRecognizerStartAfterDestroy(t *testing.T) {
	src := capture.NewStreamSource(bytes.NewReader(nil), pcm.L16Mono16K)
	rec, err := New(Config{URL: "ws://127.0.0.1:1/ws", Source: src})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := rec.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if err := rec.Start(context.Background()); err != ErrDestroyed {
		t.Fatalf("start after destroy = %v, want ErrDestroyed", err)
	}
}

func TestRecognizerGatewayError(t *testing.T) {
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"engine busy"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	src := capture.NewStreamSource(bytes.NewReader(pcmTone(16000, 0)), pcm.L16Mono16K,
		capture.WithRealtime(true))
	var log eventLog
	rec, err := New(Config{
		URL:     wsAddr(srv),
		Source:  src,
		OnEvent: log.add,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer rec.Destroy()

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ev := log.wait(t, 3*time.Second, func(ev Event) bool { return ev.Kind == EventError })
	if ev.Err == nil || !strings.Contains(ev.Err.Error(), "engine busy") {
		t.Fatalf("error event = %v, want engine busy", ev.Err)
	}
	// The protocol error closes the episode.
	log.wait(t, 3*time.Second, func(ev Event) bool { return ev.Kind == EventDisconnected })
}
