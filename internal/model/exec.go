package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for orphaned children holding the
// output pipes after the bridge is killed.
const waitDelay = 2 * time.Second

var (
	// ErrCommandNotFound is returned when the bridge executable is not found.
	ErrCommandNotFound = errors.New("model command not found")
	// ErrNoCommandSpecified is returned when no command is configured.
	ErrNoCommandSpecified = errors.New("no model command specified")
)

// ExecModel runs a bridge program once per operation. The program receives
// the operation name as its last argument and a JSON request on stdin, and
// answers with JSON on stdout.
type ExecModel struct {
	binary  string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

var _ Model = (*ExecModel)(nil)

// NewExecModel parses command (e.g. "python3 openvoice_bridge.py") and
// verifies the executable exists. A positive timeout bounds each run.
func NewExecModel(command string, timeout time.Duration, logger *slog.Logger) (*ExecModel, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoCommandSpecified
	}

	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, fields[0])
	}

	return &ExecModel{
		binary:  fields[0],
		args:    fields[1:],
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Name returns the backend identifier.
func (m *ExecModel) Name() string {
	return "exec"
}

// ExtractEmbedding runs the "se" operation.
func (m *ExecModel) ExtractEmbedding(ctx context.Context, audioPath, targetDir string, vad bool) (Embedding, string, error) {
	var resp embeddingResponse
	if err := m.run(ctx, "se", embeddingRequest{AudioPath: audioPath, TargetDir: targetDir, VAD: vad}, &resp); err != nil {
		return nil, "", err
	}
	if len(resp.Embedding) == 0 {
		return nil, "", ErrEmptyEmbedding
	}
	return resp.Embedding, resp.Name, nil
}

// DefaultEmbedding runs the "default_se" operation.
func (m *ExecModel) DefaultEmbedding(ctx context.Context, checkpointPath string) (Embedding, error) {
	var resp embeddingResponse
	if err := m.run(ctx, "default_se", defaultEmbeddingRequest{Path: checkpointPath}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embedding, nil
}

// Synthesize runs the "tts" operation.
func (m *ExecModel) Synthesize(ctx context.Context, req SynthesisRequest) error {
	return m.run(ctx, "tts", req, nil)
}

// Convert runs the "convert" operation.
func (m *ExecModel) Convert(ctx context.Context, req ConversionRequest) error {
	return m.run(ctx, "convert", req, nil)
}

func (m *ExecModel) run(ctx context.Context, op string, payload, out any) error {
	input, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	args := append(append([]string{}, m.args...), op)

	m.logger.Debug("running model command",
		"binary", m.binary,
		"op", op,
	)

	cmd := exec.CommandContext(ctx, m.binary, args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Error("model command failed",
			"op", op,
			"error", err,
			"stderr", stderr.String(),
		)
		msg := strings.TrimSpace(stderr.String())
		if stdout.Len() > 0 {
			msg = errorMessage(stdout.Bytes())
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrBackendFailed, op, err, msg)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("failed to unmarshal %s output: %w", op, err)
	}
	return nil
}
