package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/metastaff/voicekit/pkg/audio/pcm"
)

// DefaultCaptureCommand records raw 16-bit little-endian mono PCM at
// 48kHz from the default ALSA device.
const DefaultCaptureCommand = "arecord -q -f S16_LE -r 48000 -c 1 -t raw -"

// ExecSource captures audio by spawning an external recorder process
// and framing its stdout. It is the fallback path for systems without
// a native audio feed: anywhere an arecord-style binary exists, it
// works, at the cost of running off the recorder's own pacing instead
// of a local audio clock.
//
// The recorder process is started on the first Start and kept running
// across Stop/Start cycles; between captures its output is read and
// discarded so the pipe never stalls. Close terminates the process.
type ExecSource struct {
	args      []string
	format    pcm.Format
	frameSize int

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	onFrame   func([]float32)
	delivered bool
	closed    bool
}

// NewExecSource parses command into an argv (shell-style quoting
// honored) and validates that the binary exists. Returns
// ErrUnsupported when it does not.
func NewExecSource(command string, format pcm.Format) (*ExecSource, error) {
	if command == "" {
		command = DefaultCaptureCommand
	}
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("capture: parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture: empty capture command")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrUnsupported, args[0])
	}
	return &ExecSource{
		args:      args,
		format:    format,
		frameSize: DefaultFrameSize,
	}, nil
}

// SampleRate returns the capture sample rate in Hz.
func (e *ExecSource) SampleRate() int {
	return e.format.SampleRate()
}

// Start begins delivering frames to onFrame, launching the recorder
// process if it is not already running.
func (e *ExecSource) Start(onFrame func([]float32)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("capture: start on closed source")
	}
	if e.delivered {
		return fmt.Errorf("capture: exec source already started")
	}
	if e.cmd == nil {
		if err := e.spawnLocked(); err != nil {
			return err
		}
	}
	e.onFrame = onFrame
	e.delivered = true
	return nil
}

func (e *ExecSource) spawnLocked() error {
	cmd := exec.Command(e.args[0], e.args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %v", ErrPermission, err)
		}
		return fmt.Errorf("capture: start %s: %w", e.args[0], err)
	}
	e.cmd = cmd
	e.stdout = stdout

	go e.readLoop(stdout)
	return nil
}

func (e *ExecSource) readLoop(stdout io.Reader) {
	buf := make([]byte, e.frameSize*2)
	for {
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			e.mu.Lock()
			onFrame := e.onFrame
			active := e.delivered
			e.mu.Unlock()
			if active && onFrame != nil {
				onFrame(pcm.DecodeSamples(buf[:n-n%2]))
			}
			// Frames read while stopped are discarded to keep the
			// recorder pipe flowing.
		}
		if err != nil {
			e.mu.Lock()
			closed := e.closed
			e.mu.Unlock()
			if !closed {
				slog.Debug("capture process output ended", "cmd", e.args[0], "err", err)
			}
			return
		}
	}
}

// Stop halts frame delivery. Idempotent. The recorder keeps running so
// the next Start resumes without device re-acquisition.
func (e *ExecSource) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delivered = false
	e.onFrame = nil
	return nil
}

// Close terminates the recorder process and releases the source.
func (e *ExecSource) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.delivered = false
	e.onFrame = nil
	cmd := e.cmd
	stdout := e.stdout
	e.cmd = nil
	e.stdout = nil
	e.mu.Unlock()

	if stdout != nil {
		stdout.Close()
	}
	if cmd != nil && cmd.Process != nil {
		cmd.Process.Kill()
		cmd.Wait()
	}
	return nil
}
