package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig holds configuration for the HTTP model backend.
type HTTPConfig struct {
	// BaseURL is the root URL of the model sidecar, e.g. http://127.0.0.1:8000.
	BaseURL string
	// Timeout bounds each call; zero means no client-side timeout.
	Timeout time.Duration
}

// HTTPClient is the subset of *http.Client used by the backend.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPModel talks to a model sidecar process that keeps the checkpoints
// loaded. All paths exchanged are on a filesystem shared with the sidecar.
type HTTPModel struct {
	baseURL    string
	httpClient HTTPClient
	logger     *slog.Logger
}

var _ Model = (*HTTPModel)(nil)

// NewHTTPModel creates an HTTP backend. A nil httpClient gets a default one
// using cfg.Timeout.
func NewHTTPModel(cfg HTTPConfig, httpClient HTTPClient, logger *slog.Logger) (*HTTPModel, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("model base URL is required")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPModel{
		baseURL:    base,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Name returns the backend identifier.
func (m *HTTPModel) Name() string {
	return "http"
}

// ExtractEmbedding calls POST /se.
func (m *HTTPModel) ExtractEmbedding(ctx context.Context, audioPath, targetDir string, vad bool) (Embedding, string, error) {
	var resp embeddingResponse
	err := m.post(ctx, "/se", embeddingRequest{AudioPath: audioPath, TargetDir: targetDir, VAD: vad}, &resp)
	if err != nil {
		return nil, "", err
	}
	if len(resp.Embedding) == 0 {
		return nil, "", ErrEmptyEmbedding
	}
	return resp.Embedding, resp.Name, nil
}

// DefaultEmbedding calls POST /default_se.
func (m *HTTPModel) DefaultEmbedding(ctx context.Context, checkpointPath string) (Embedding, error) {
	var resp embeddingResponse
	if err := m.post(ctx, "/default_se", defaultEmbeddingRequest{Path: checkpointPath}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embedding, nil
}

// Synthesize calls POST /tts.
func (m *HTTPModel) Synthesize(ctx context.Context, req SynthesisRequest) error {
	return m.post(ctx, "/tts", req, nil)
}

// Convert calls POST /convert.
func (m *HTTPModel) Convert(ctx context.Context, req ConversionRequest) error {
	return m.post(ctx, "/convert", req, nil)
}

// HealthCheck calls GET /healthz and returns an error unless it answers 2xx.
func (m *HTTPModel) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach model server: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode > 299 {
		return fmt.Errorf("%w: health status %d", ErrBackendFailed, resp.StatusCode)
	}
	return nil
}

func (m *HTTPModel) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call model server %s: %w", path, err)
	}
	defer drainAndClose(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	m.logger.Debug("model call finished",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned status %d: %s", ErrBackendFailed, path, resp.StatusCode, errorMessage(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a body, falling back to the raw text.
func errorMessage(body []byte) string {
	var apiErr errorResponse
	if len(body) != 0 && json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return apiErr.Error
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "unknown error"
	}
	return msg
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
