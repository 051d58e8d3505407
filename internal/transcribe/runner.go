package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ProcessRunner invokes the transcription script as a subprocess:
// interpreter script audio-path. The transcript comes back on stdout.
type ProcessRunner struct {
	Interpreter string
	Script      string
	Logger      *zerolog.Logger
}

func (r *ProcessRunner) Run(ctx context.Context, audioPath string) (string, error) {
	resolved, err := filepath.Abs(audioPath)
	if err != nil {
		return "", fmt.Errorf("resolve audio path: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.Interpreter, r.Script, resolved)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("transcriber process: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		// Model loading progress lands on stderr; only an empty stdout
		// makes it an error.
		if text == "" {
			return "", fmt.Errorf("transcriber process: %w (stderr: %s)", ErrEmptyTranscript, msg)
		}

		r.Logger.Warn().Str("stderr", msg).Msg("transcriber wrote to stderr")
	}

	return text, nil
}
