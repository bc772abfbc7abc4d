// Package model defines the boundary to the external voice-cloning runtime
// (base speaker TTS plus tone-color converter) and its backends.
package model

import (
	"context"
	"errors"
)

var (
	// ErrBackendFailed is returned when the model runtime reports a failure.
	ErrBackendFailed = errors.New("model backend failed")
	// ErrEmptyEmbedding is returned when the runtime returns no embedding.
	ErrEmptyEmbedding = errors.New("model returned an empty embedding")
)

// Embedding is a tone-color (speaker) embedding. Its contents are opaque to
// this service and only passed back to the runtime.
type Embedding []float32

// SynthesisRequest contains parameters for base speaker synthesis.
type SynthesisRequest struct {
	Text       string  `json:"text"`
	OutputPath string  `json:"output_path"`
	Speaker    string  `json:"speaker"`
	Language   string  `json:"language"`
	Speed      float64 `json:"speed"`
}

// ConversionRequest contains parameters for tone-color conversion.
type ConversionRequest struct {
	SourcePath string    `json:"audio_src_path"`
	SourceSE   Embedding `json:"src_se"`
	TargetSE   Embedding `json:"tgt_se"`
	OutputPath string    `json:"output_path"`
	// Message is embedded in the output as a watermark.
	Message string `json:"message"`
}

// Model is the interface to a loaded voice-cloning runtime. Implementations
// are created once at startup and shared by all requests.
type Model interface {
	// ExtractEmbedding derives a tone-color embedding from the audio at
	// audioPath. targetDir is scratch space for the extractor.
	ExtractEmbedding(ctx context.Context, audioPath, targetDir string, vad bool) (Embedding, string, error)
	// DefaultEmbedding loads the embedding bundled with a checkpoint.
	DefaultEmbedding(ctx context.Context, checkpointPath string) (Embedding, error)
	// Synthesize writes base speaker audio for req.Text to req.OutputPath.
	Synthesize(ctx context.Context, req SynthesisRequest) error
	// Convert rewrites the tone color of req.SourcePath into req.OutputPath.
	Convert(ctx context.Context, req ConversionRequest) error
	// Name returns the backend identifier.
	Name() string
}

type embeddingRequest struct {
	AudioPath string `json:"audio_path"`
	TargetDir string `json:"target_dir"`
	VAD       bool   `json:"vad"`
}

type defaultEmbeddingRequest struct {
	Path string `json:"path"`
}

type embeddingResponse struct {
	Embedding Embedding `json:"embedding"`
	Name      string    `json:"name,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
