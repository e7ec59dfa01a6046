package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/metastaff/voicekit/pkg/asr"
	"github.com/metastaff/voicekit/pkg/audio/pcm"
	"github.com/metastaff/voicekit/pkg/audio/resample"
	"github.com/metastaff/voicekit/pkg/cli"
	"github.com/metastaff/voicekit/pkg/iat"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file.wav>",
	Short: "Transcribe an audio file",
	Long: `Transcribe a WAV file through the recognition gateway.

The file is resampled to the gateway's 16 kHz mono format and streamed
in real-time sized chunks; the settled transcript prints when the
gateway finalizes.

Examples:
  voicekit -c dev transcribe meeting.wav
  voicekit -c dev transcribe meeting.wav --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().String("gateway-url", "", "override the context gateway URL")
	transcribeCmd.Flags().Bool("json", false, "output result as JSON")
	transcribeCmd.Flags().StringP("output", "o", "", "write result to file")
	transcribeCmd.Flags().Duration("timeout", 2*time.Minute, "overall transcription timeout")
}

// transcribeResult is the printable outcome of a file transcription.
type transcribeResult struct {
	File       string  `json:"file" yaml:"file"`
	Text       string  `json:"text" yaml:"text"`
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Duration   string  `json:"duration" yaml:"duration"`
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cliCtx, err := getContext()
	if err != nil {
		return err
	}

	gatewayURL, _ := cmd.Flags().GetString("gateway-url")
	if gatewayURL == "" {
		gatewayURL = cliCtx.GatewayURL
	}
	if gatewayURL == "" {
		return fmt.Errorf("no gateway URL configured, set --gateway-url or the context")
	}

	samples, err := readWavMono(args[0])
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("%s contains no audio", args[0])
	}

	target := pcm.L16Mono16K
	audioDuration := time.Duration(float64(len(samples)) / float64(target.SampleRate()) * float64(time.Second))

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var header http.Header
	if cliCtx.APIKey != "" {
		header = http.Header{"Authorization": []string{"Bearer " + cliCtx.APIKey}}
	}
	sess, err := iat.Dial(ctx, iat.Config{URL: gatewayURL, Format: target, Header: header})
	if err != nil {
		return err
	}
	defer sess.Abort()

	var result transcribeResult
	result.File = args[0]
	agg := asr.NewAggregator(asr.AggregatorConfig{
		// File audio streams without pauses; never split segments.
		SegmentGap: audioDuration + time.Minute,
		OnFinal: func(text string, confidence float64) {
			result.Text = text
			result.Confidence = confidence
		},
	})

	if err := transcribeStream(ctx, sess, samples, target, agg); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("transcription timed out after %s", cli.FormatDuration(timeout))
		}
		return err
	}
	result.Duration = cli.FormatDuration(audioDuration)

	jsonOut, _ := cmd.Flags().GetBool("json")
	outFile, _ := cmd.Flags().GetString("output")
	format := cli.FormatYAML
	if jsonOut {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format, File: outFile})
}

// transcribeStream pushes samples through sess, folds the gateway's
// results into agg, and waits for the utterance to settle. An explicit
// gateway error aborts the session and is returned as the root cause.
func transcribeStream(ctx context.Context, sess *iat.Session, samples []float32, target pcm.Format, agg *asr.Aggregator) error {
	done := make(chan struct{})
	var recvErr error
	go func() {
		defer close(done)
		for msg := range sess.Results() {
			if msg.Error != "" {
				// No final is coming after an explicit error.
				recvErr = &iat.Error{Message: msg.Error, ReqID: sess.ReqID()}
				sess.Abort()
				return
			}
			if msg.Data == nil {
				continue
			}
			agg.Push(msg.Data.Result, msg.Data.Status == iat.StatusLastFrame)
			if msg.Data.Status == iat.StatusLastFrame {
				return
			}
		}
	}()

	sendErr := streamSamples(ctx, sess, samples, target)
	if sendErr == nil {
		sendErr = sess.SendEnd()
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	// A gateway error aborts the session, which also fails the sender;
	// the gateway's diagnostic is the root cause.
	if recvErr != nil {
		return recvErr
	}
	if sendErr != nil {
		return sendErr
	}
	return sess.Err()
}

// streamSamples sends 16 kHz mono samples as paced wire chunks.
func streamSamples(ctx context.Context, sess *iat.Session, samples []float32, format pcm.Format) error {
	const chunk = resample.DefaultChunkSamples
	pace := format.Duration(chunk * 2)
	ticker := time.NewTicker(pace)
	defer ticker.Stop()

	for off := 0; off < len(samples); off += chunk {
		end := off + chunk
		if end > len(samples) {
			end = len(samples)
		}
		if err := sess.SendChunk(pcm.EncodeSamples(samples[off:end])); err != nil {
			return err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// readWavMono decodes a WAV file to mono float32 samples at the
// gateway rate.
func readWavMono(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := float32(int(1) << (dec.BitDepth - 1))
	frames := len(buf.Data) / channels

	// Average channels down to mono.
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += float32(buf.Data[i*channels+c]) / scale
		}
		mono[i] = sum / float32(channels)
	}

	target := pcm.L16Mono16K
	return resample.Convert(mono, buf.Format.SampleRate, target.SampleRate())
}
