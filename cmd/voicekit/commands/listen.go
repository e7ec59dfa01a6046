package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/metastaff/voicekit/pkg/asr"
	"github.com/metastaff/voicekit/pkg/audio/capture"
	"github.com/metastaff/voicekit/pkg/audio/pcm"
	"github.com/metastaff/voicekit/pkg/audio/vad"
	"github.com/metastaff/voicekit/pkg/cli"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stream microphone audio to the recognition gateway",
	Long: `Stream live audio to the recognition gateway and print transcripts.

Audio comes from the configured capture command (arecord by default),
or from stdin as raw PCM16LE with --stdin.

Voice activity detection closes each utterance automatically after a
configurable stretch of silence; recognition restarts for the next
utterance until interrupted.

Examples:
  voicekit -c dev listen
  voicekit -c dev listen --silence-ms 1000
  arecord -q -f S16_LE -r 48000 -c 1 -t raw - | voicekit -c dev listen --stdin --rate 48000`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().Bool("stdin", false, "read raw PCM16LE audio from stdin")
	listenCmd.Flags().Int("rate", 48000, "stdin sample rate in Hz")
	listenCmd.Flags().String("gateway-url", "", "override the context gateway URL")
	listenCmd.Flags().Int("silence-ms", 0, "silence before end-of-utterance (default 1500)")
	listenCmd.Flags().Int("min-speech-ms", 0, "minimum speech run to count as an utterance (default 500)")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, err := getContext()
	if err != nil {
		return err
	}

	gatewayURL, _ := cmd.Flags().GetString("gateway-url")
	if gatewayURL == "" {
		gatewayURL = ctx.GatewayURL
	}
	if gatewayURL == "" {
		return fmt.Errorf("no gateway URL configured, set --gateway-url or the context")
	}

	source, err := buildSource(cmd, ctx)
	if err != nil {
		return err
	}

	silenceMs, _ := cmd.Flags().GetInt("silence-ms")
	minSpeechMs, _ := cmd.Flags().GetInt("min-speech-ms")

	var header http.Header
	if ctx.APIKey != "" {
		header = http.Header{"Authorization": []string{"Bearer " + ctx.APIKey}}
	}

	view := cli.NewTranscriptView("voicekit listen", 8)
	var viewMu sync.Mutex
	repaint := func() {
		viewMu.Lock()
		defer viewMu.Unlock()
		fmt.Print("\033[H\033[2J")
		fmt.Print(view.Render())
	}

	fatal := make(chan error, 1)
	sup := asr.NewSupervisor(asr.SupervisorConfig{
		OnTranscript: func(text string) {
			viewMu.Lock()
			view.Commit(text)
			viewMu.Unlock()
			repaint()
		},
		OnDisplay: func(text string) {
			viewMu.Lock()
			view.SetInterim(text)
			viewMu.Unlock()
			repaint()
		},
		OnFatal: func(err error) {
			select {
			case fatal <- err:
			default:
			}
		},
	})

	rec, err := asr.New(asr.Config{
		URL:    gatewayURL,
		Header: header,
		Source: source,
		Format: pcm.L16Mono16K,
		VAD: vad.Config{
			SilenceDuration:   time.Duration(silenceMs) * time.Millisecond,
			MinSpeechDuration: time.Duration(minSpeechMs) * time.Millisecond,
		},
		OnEvent: func(ev asr.Event) {
			sup.Handle(ev)
			viewMu.Lock()
			switch ev.Kind {
			case asr.EventSpeechStart:
				view.SetStatus("speaking")
			case asr.EventSpeechEnd:
				view.SetStatus("listening")
			case asr.EventStart:
				view.SetStatus("listening")
			case asr.EventDisconnected:
				view.SetStatus("reconnecting")
			}
			viewMu.Unlock()
			repaint()
		},
	})
	if err != nil {
		return err
	}
	defer rec.Destroy()
	sup.Bind(rec)

	runCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sup.Start(runCtx); err != nil {
		return err
	}
	repaint()

	select {
	case <-runCtx.Done():
	case err := <-fatal:
		sup.Close()
		return fmt.Errorf("recognition stopped: %w", err)
	}

	return sup.Close()
}

// buildSource selects the audio source: stdin when requested, the
// capture command otherwise.
func buildSource(cmd *cobra.Command, ctx *cli.Context) (capture.FrameSource, error) {
	useStdin, _ := cmd.Flags().GetBool("stdin")
	if useStdin {
		rate, _ := cmd.Flags().GetInt("rate")
		format, ok := pcm.FormatForRate(rate)
		if !ok {
			return nil, fmt.Errorf("unsupported stdin sample rate %d", rate)
		}
		return capture.NewStreamSource(os.Stdin, format, capture.WithRealtime(true)), nil
	}

	command := ctx.CaptureCommand
	if command == "" {
		command = capture.DefaultCaptureCommand
	}
	return capture.NewExecSource(command, pcm.L16Mono48K)
}
