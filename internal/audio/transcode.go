// Package audio shells out to ffmpeg for the two conversions the pipeline
// needs: inbound voice notes to the transcriber's canonical format, and
// synthesized speech back to an opus voice note.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

type Transcoder struct {
	FfmpegPath string
	Logger     *zerolog.Logger
}

func NewTranscoder(ffmpegPath string, logger *zerolog.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	return &Transcoder{FfmpegPath: ffmpegPath, Logger: logger}
}

// ToWav16kMono converts any input audio to 16kHz mono signed 16-bit PCM,
// the format the transcription model expects.
func (t *Transcoder) ToWav16kMono(ctx context.Context, inputPath, outputPath string) error {
	return t.run(ctx,
		"-y",
		"-i", inputPath,
		"-f", "wav",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		outputPath,
	)
}

// ToOggOpus converts synthesized WAV audio to an ogg/opus file suitable for
// sending as a voice note.
func (t *Transcoder) ToOggOpus(ctx context.Context, inputPath, outputPath string) error {
	return t.run(ctx,
		"-y",
		"-i", inputPath,
		"-acodec", "libopus",
		"-b:a", "64k",
		"-f", "ogg",
		outputPath,
	)
}

func (t *Transcoder) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.FfmpegPath, args...)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	t.Logger.Debug().Str("cmd", t.FfmpegPath+" "+strings.Join(args, " ")).Msg("running ffmpeg")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w (stderr: %s)", err, lastLine(stderr.String()))
	}

	return nil
}

// lastLine keeps error messages readable: ffmpeg prints its whole banner to
// stderr and the failure reason sits on the final line.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}

	return strings.TrimSpace(lines[len(lines)-1])
}
