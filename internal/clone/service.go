// Package clone runs the voice-cloning pipeline: tone-color extraction,
// base speaker synthesis and tone-color conversion.
package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/voiceclone-go/internal/model"
	"github.com/dgnsrekt/voiceclone-go/internal/storage"
	"github.com/dgnsrekt/voiceclone-go/internal/wav"
)

const (
	DefaultSpeaker  = "default"
	DefaultLanguage = "English"
	DefaultSpeed    = 1.0
	DefaultMessage  = "@MyShell"
	DefaultSEPath   = "OpenVoice/checkpoints/base_speakers/EN/en_default_se.pth"
)

// mirrorTimeout bounds an artifact upload after the pipeline has finished.
const mirrorTimeout = 30 * time.Second

var (
	// ErrEmptyText is returned when the request has no text to speak.
	ErrEmptyText = errors.New("text is empty")
	// ErrNoVoice is returned when the request has no reference voice.
	ErrNoVoice = errors.New("voice path is empty")
	// ErrNoOutput is returned when the converter reports success but wrote nothing.
	ErrNoOutput = errors.New("converter produced no output")
)

// Preset holds the fixed synthesis and conversion parameters.
type Preset struct {
	Speaker       string
	Language      string
	Speed         float64
	Message       string
	DefaultSEPath string
}

// DefaultPreset returns the stock English base speaker preset.
func DefaultPreset() Preset {
	return Preset{
		Speaker:       DefaultSpeaker,
		Language:      DefaultLanguage,
		Speed:         DefaultSpeed,
		Message:       DefaultMessage,
		DefaultSEPath: DefaultSEPath,
	}
}

// Normalizer transcodes a reference file before embedding extraction.
type Normalizer interface {
	NormalizeFile(ctx context.Context, inPath, outPath string) error
}

// ArtifactStore receives a copy of every finished artifact.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Request is one generation request.
type Request struct {
	Text      string
	VoicePath string
	// StylePath is optional; when empty the preset's default embedding is the source.
	StylePath string
}

// Result describes a finished artifact.
type Result struct {
	ID string
	// Filename is relative to the outputs directory.
	Filename string
	Path     string
	// Duration is zero when the header could not be read.
	Duration time.Duration
}

// Options configures a Service.
type Options struct {
	Model  model.Model
	Layout *storage.Layout
	Preset Preset
	// Normalizer and Artifacts are optional.
	Normalizer Normalizer
	Artifacts  ArtifactStore
	Logger     *slog.Logger
}

// Service owns the model backend and runs clone pipelines. It is safe for
// concurrent use as long as the backend is.
type Service struct {
	model      model.Model
	layout     *storage.Layout
	preset     Preset
	normalizer Normalizer
	artifacts  ArtifactStore
	logger     *slog.Logger
	newID      func() string
}

// NewService creates a Service. Zero preset fields fall back to DefaultPreset.
func NewService(opts Options) (*Service, error) {
	if opts.Model == nil {
		return nil, errors.New("clone: model is required")
	}
	if opts.Layout == nil {
		return nil, errors.New("clone: layout is required")
	}

	preset := opts.Preset
	def := DefaultPreset()
	if preset.Speaker == "" {
		preset.Speaker = def.Speaker
	}
	if preset.Language == "" {
		preset.Language = def.Language
	}
	if preset.Speed == 0 {
		preset.Speed = def.Speed
	}
	if preset.Message == "" {
		preset.Message = def.Message
	}
	if preset.DefaultSEPath == "" {
		preset.DefaultSEPath = def.DefaultSEPath
	}
	seAbs, err := filepath.Abs(preset.DefaultSEPath)
	if err != nil {
		return nil, fmt.Errorf("clone: resolve default embedding path: %w", err)
	}
	preset.DefaultSEPath = seAbs

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		model:      opts.Model,
		layout:     opts.Layout,
		preset:     preset,
		normalizer: opts.Normalizer,
		artifacts:  opts.Artifacts,
		logger:     logger,
		newID:      uuid.NewString,
	}, nil
}

// Clone runs the pipeline for req and returns the retained artifact.
// Intermediate files are removed on every exit path.
func (s *Service) Clone(ctx context.Context, req Request) (*Result, error) {
	return s.run(ctx, req, true)
}

func (s *Service) run(ctx context.Context, req Request, mirror bool) (*Result, error) {
	id := s.newID()
	start := time.Now()

	res, err := s.pipeline(ctx, id, req)
	if err != nil {
		kind := KindOf(err)
		metrics.CloneFailures.WithLabelValues(kind.String()).Inc()
		s.logger.Error("clone failed",
			"id", id,
			"kind", kind.String(),
			"error", err,
		)
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.CloneSeconds.Observe(elapsed.Seconds())
	s.logger.Info("clone finished",
		"id", id,
		"file", res.Filename,
		"audio_duration", res.Duration,
		"elapsed", elapsed,
	)

	if mirror && s.artifacts != nil {
		s.mirror(ctx, res)
	}
	return res, nil
}

func (s *Service) pipeline(ctx context.Context, id string, req Request) (*Result, error) {
	if req.Text == "" {
		return nil, newError(KindInput, "validate", ErrEmptyText)
	}
	if req.VoicePath == "" {
		return nil, newError(KindInput, "validate", ErrNoVoice)
	}

	// The runtime resolves paths against its own working directory.
	voice, err := absPath(req.VoicePath)
	if err != nil {
		return nil, err
	}
	style, err := absPath(req.StylePath)
	if err != nil {
		return nil, err
	}

	if s.normalizer != nil {
		var cleanup func()
		voice, style, cleanup, err = s.normalize(ctx, id, voice, style)
		defer cleanup()
		if err != nil {
			return nil, err
		}
	}

	processed := s.layout.Processed()

	target, _, err := s.model.ExtractEmbedding(ctx, voice, processed, false)
	if err != nil {
		return nil, newError(KindModel, "extract target embedding", err)
	}

	var source model.Embedding
	if style != "" {
		source, _, err = s.model.ExtractEmbedding(ctx, style, processed, false)
		if err != nil {
			return nil, newError(KindModel, "extract source embedding", err)
		}
	} else {
		source, err = s.model.DefaultEmbedding(ctx, s.preset.DefaultSEPath)
		if err != nil {
			return nil, newError(KindModel, "load default embedding", err)
		}
	}

	outputs := s.layout.Outputs()
	tmpPath := filepath.Join(outputs, "tmp_"+id+".wav")
	defer s.remove(tmpPath)

	err = s.model.Synthesize(ctx, model.SynthesisRequest{
		Text:       req.Text,
		OutputPath: tmpPath,
		Speaker:    s.preset.Speaker,
		Language:   s.preset.Language,
		Speed:      s.preset.Speed,
	})
	if err != nil {
		return nil, newError(KindModel, "synthesize", err)
	}

	filename := "cloned_" + id + ".wav"
	finalPath := filepath.Join(outputs, filename)

	err = s.model.Convert(ctx, model.ConversionRequest{
		SourcePath: tmpPath,
		SourceSE:   source,
		TargetSE:   target,
		OutputPath: finalPath,
		Message:    s.preset.Message,
	})
	if err != nil {
		s.remove(finalPath)
		return nil, newError(KindModel, "convert", err)
	}

	if _, err := os.Stat(finalPath); err != nil {
		return nil, newError(KindModel, "convert", fmt.Errorf("%w: %v", ErrNoOutput, err))
	}

	res := &Result{ID: id, Filename: filename, Path: finalPath}
	if h, err := wav.ReadFileHeader(finalPath); err == nil {
		res.Duration = h.Duration()
	} else {
		s.logger.Debug("could not read artifact header", "file", filename, "error", err)
	}
	return res, nil
}

// absPath resolves a reference path and checks that it exists. An empty
// path stays empty.
func absPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", newError(KindIO, "resolve reference", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", newError(KindIO, "stat reference", err)
	}
	return abs, nil
}

// normalize transcodes the references into processed/. The returned cleanup
// removes whatever was written and is always non-nil.
func (s *Service) normalize(ctx context.Context, id, voice, style string) (string, string, func(), error) {
	var written []string
	cleanup := func() {
		for _, p := range written {
			s.remove(p)
		}
	}

	out := filepath.Join(s.layout.Processed(), id+"_voice.wav")
	written = append(written, out)
	if err := s.normalizer.NormalizeFile(ctx, voice, out); err != nil {
		return "", "", cleanup, newError(KindIO, "normalize voice", err)
	}
	voice = out

	if style != "" {
		out := filepath.Join(s.layout.Processed(), id+"_style.wav")
		written = append(written, out)
		if err := s.normalizer.NormalizeFile(ctx, style, out); err != nil {
			return "", "", cleanup, newError(KindIO, "normalize style", err)
		}
		style = out
	}
	return voice, style, cleanup, nil
}

func (s *Service) mirror(ctx context.Context, res *Result) {
	data, err := os.ReadFile(res.Path)
	if err != nil {
		s.logger.Warn("artifact mirror read failed", "file", res.Filename, "error", err)
		return
	}

	// The caller may already have gone away; the mirror still completes.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()

	if err := s.artifacts.Upload(ctx, res.Filename, data); err != nil {
		s.logger.Warn("artifact mirror upload failed", "file", res.Filename, "error", err)
		return
	}
	s.logger.Debug("artifact mirrored", "file", res.Filename, "bytes", len(data))
}

func (s *Service) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove file", "path", path, "error", err)
	}
}
