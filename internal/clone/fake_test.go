package clone_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/voiceclone-go/internal/clone"
	"github.com/dgnsrekt/voiceclone-go/internal/model"
	"github.com/dgnsrekt/voiceclone-go/internal/storage"
	"github.com/dgnsrekt/voiceclone-go/internal/wav"
)

var errBoom = errors.New("boom")

// fakeModel records calls and writes one second of silence wherever it is
// asked to produce audio.
type fakeModel struct {
	mu    sync.Mutex
	calls []string

	synthRequests []model.SynthesisRequest
	convRequests  []model.ConversionRequest
	extracted     []string
	defaultPaths  []string

	failOn string
	// partial makes a failing Convert leave a half-written file behind.
	partial bool
	// skipWrite makes Convert succeed without writing output.
	skipWrite bool
}

func (f *fakeModel) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if f.failOn == op {
		return errBoom
	}
	return nil
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) ExtractEmbedding(_ context.Context, audioPath, _ string, vad bool) (model.Embedding, string, error) {
	if vad {
		return nil, "", errors.New("vad must be off")
	}
	f.mu.Lock()
	f.extracted = append(f.extracted, audioPath)
	f.mu.Unlock()
	if err := f.record("se"); err != nil {
		return nil, "", err
	}
	return model.Embedding{float32(len(audioPath))}, "ref", nil
}

func (f *fakeModel) DefaultEmbedding(_ context.Context, path string) (model.Embedding, error) {
	f.mu.Lock()
	f.defaultPaths = append(f.defaultPaths, path)
	f.mu.Unlock()
	if err := f.record("default_se"); err != nil {
		return nil, err
	}
	return model.Embedding{-1}, nil
}

func (f *fakeModel) Synthesize(_ context.Context, req model.SynthesisRequest) error {
	f.mu.Lock()
	f.synthRequests = append(f.synthRequests, req)
	f.mu.Unlock()
	if err := f.record("tts"); err != nil {
		return err
	}
	return os.WriteFile(req.OutputPath, wav.CreateSilence(time.Second), 0o644)
}

func (f *fakeModel) Convert(_ context.Context, req model.ConversionRequest) error {
	f.mu.Lock()
	f.convRequests = append(f.convRequests, req)
	f.mu.Unlock()
	if err := f.record("convert"); err != nil {
		if f.partial {
			_ = os.WriteFile(req.OutputPath, []byte("RIFF"), 0o644)
		}
		return err
	}
	if f.skipWrite {
		return nil
	}
	return os.WriteFile(req.OutputPath, wav.CreateSilence(time.Second), 0o644)
}

func (f *fakeModel) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (s *fakeStore) Upload(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService returns a service over a fresh layout and a voice sample
// already staged under uploads/.
func newTestService(t *testing.T, m model.Model, opts ...func(*clone.Options)) (*clone.Service, *storage.Layout, string) {
	t.Helper()

	layout, err := storage.NewLayout(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, layout.Ensure())

	voice := writeSample(t, layout, "voice.wav")

	o := clone.Options{Model: m, Layout: layout, Logger: quietLogger()}
	for _, fn := range opts {
		fn(&o)
	}

	svc, err := clone.NewService(o)
	require.NoError(t, err)
	return svc, layout, voice
}

func writeSample(t *testing.T, layout *storage.Layout, name string) string {
	t.Helper()
	path := filepath.Join(layout.Uploads(), name)
	require.NoError(t, os.WriteFile(path, wav.CreateSilence(500*time.Millisecond), 0o644))
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
