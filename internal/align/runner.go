package align

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Aligner derives per-word timestamps from an existing audio+transcript
// pair, as opposed to receiving them from a TTS provider.
type Aligner interface {
	Align(ctx context.Context, audioPath, transcript string) (*Alignment, error)
}

// ProcessAligner shells out to an external forced-alignment binary that
// reads an audio file and a transcript file and writes an Alignment as
// JSON on stdout.
type ProcessAligner struct {
	binPath string
	timeout time.Duration
	logger  *slog.Logger
}

// NewProcessAligner creates an aligner around the given binary. If binPath
// is empty the binary is looked up on PATH under the name "word-aligner".
func NewProcessAligner(binPath string, timeout time.Duration, logger *slog.Logger) (*ProcessAligner, error) {
	if binPath == "" {
		path, err := exec.LookPath("word-aligner")
		if err != nil {
			return nil, fmt.Errorf("aligner binary not found: %w", err)
		}
		binPath = path
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &ProcessAligner{
		binPath: binPath,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Align runs one alignment invocation. The timeout is invocation-scoped.
func (a *ProcessAligner) Align(ctx context.Context, audioPath, transcript string) (*Alignment, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// The aligner wants the transcript as a file.
	tf, err := os.CreateTemp("", "transcript-*.txt")
	if err != nil {
		return nil, fmt.Errorf("create transcript file: %w", err)
	}
	defer os.Remove(tf.Name())

	if _, err := tf.WriteString(transcript); err != nil {
		tf.Close()
		return nil, fmt.Errorf("write transcript: %w", err)
	}
	if err := tf.Close(); err != nil {
		return nil, fmt.Errorf("close transcript: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.binPath, "--audio", audioPath, "--transcript", tf.Name(), "--format", "json")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	a.logger.Debug("running forced aligner", "audio", audioPath)

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("aligner failed: %w (stderr: %s)", err, stderr.String())
	}

	var alignment Alignment
	if err := json.Unmarshal(stdout.Bytes(), &alignment); err != nil {
		return nil, fmt.Errorf("decode aligner output: %w", err)
	}

	return &alignment, nil
}
