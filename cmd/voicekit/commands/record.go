package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/metastaff/voicekit/pkg/audio/capture"
	"github.com/metastaff/voicekit/pkg/audio/pcm"
	"github.com/metastaff/voicekit/pkg/cli"
)

var recordCmd = &cobra.Command{
	Use:   "record <output.wav>",
	Short: "Record microphone audio to a WAV file",
	Long: `Record from the configured capture command into a WAV file.

Useful for checking the microphone path before running 'listen', and
for producing test material for 'transcribe'. Recording runs until
interrupted or --duration elapses.

Examples:
  voicekit -c dev record check.wav
  voicekit -c dev record check.wav --duration 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().Duration("duration", 0, "stop after this long (default: until interrupted)")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, err := getContext()
	if err != nil {
		return err
	}

	command := ctx.CaptureCommand
	if command == "" {
		command = capture.DefaultCaptureCommand
	}
	format := pcm.L16Mono48K
	source, err := capture.NewExecSource(command, format)
	if err != nil {
		return err
	}
	defer source.Close()

	var mu sync.Mutex
	var samples []int
	if err := source.Start(func(frame []float32) {
		data := pcm.EncodeSamples(frame)
		mu.Lock()
		for i := 0; i+1 < len(data); i += 2 {
			samples = append(samples, int(int16(data[i])|int16(data[i+1])<<8))
		}
		mu.Unlock()
	}); err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	duration, _ := cmd.Flags().GetDuration("duration")
	if duration > 0 {
		select {
		case <-runCtx.Done():
		case <-time.After(duration):
		}
	} else {
		<-runCtx.Done()
	}
	if err := source.Stop(); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if len(samples) == 0 {
		return fmt.Errorf("no audio captured")
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: format.Channels(), SampleRate: format.SampleRate()},
		Data:   samples,
	}
	enc := wav.NewEncoder(f, format.SampleRate(), format.Depth(), format.Channels(), 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}

	cli.PrintSuccess("recorded %s (%s)", args[0],
		cli.FormatDuration(format.Duration(int64(len(samples)*2))))
	return nil
}
