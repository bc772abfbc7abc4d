package model

import (
	"context"
	"errors"
	"testing"
)

// mockModel is a test implementation of Model.
type mockModel struct {
	name string
}

func (m *mockModel) Name() string { return m.name }

func (m *mockModel) ExtractEmbedding(ctx context.Context, audioPath, targetDir string, vad bool) (Embedding, string, error) {
	return Embedding{1}, "mock", nil
}

func (m *mockModel) DefaultEmbedding(ctx context.Context, checkpointPath string) (Embedding, error) {
	return Embedding{0}, nil
}

func (m *mockModel) Synthesize(ctx context.Context, req SynthesisRequest) error { return nil }

func (m *mockModel) Convert(ctx context.Context, req ConversionRequest) error { return nil }

func mockFactory(name string) Factory {
	return func(opts Options) (Model, error) {
		return &mockModel{name: name}, nil
	}
}

func TestRegistry_RegisterAndOpen(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("mock", mockFactory("mock")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, err := reg.Open("mock", Options{})
	if err != nil {
		t.Fatalf("failed to open backend: %v", err)
	}
	if m.Name() != "mock" {
		t.Errorf("expected name 'mock', got '%s'", m.Name())
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("mock", mockFactory("mock")); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := reg.Register("mock", mockFactory("mock"))
	if !errors.Is(err, ErrBackendExists) {
		t.Errorf("expected ErrBackendExists, got %v", err)
	}
}

func TestRegistry_OpenNotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Open("nonexistent", Options{})
	if !errors.Is(err, ErrBackendNotFound) {
		t.Errorf("expected ErrBackendNotFound, got %v", err)
	}
}

func TestRegistry_OpenFactoryError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	reg.Register("broken", func(opts Options) (Model, error) { return nil, boom })

	_, err := reg.Open("broken", Options{})
	if !errors.Is(err, boom) {
		t.Errorf("expected factory error to be wrapped, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := NewDefaultRegistry()

	names := reg.List()
	if len(names) != 2 || names[0] != "exec" || names[1] != "http" {
		t.Errorf("List() = %v, want [exec http]", names)
	}

	m, err := reg.Open("http", Options{URL: "http://127.0.0.1:8000"})
	if err != nil {
		t.Fatalf("open http backend: %v", err)
	}
	if m.Name() != "http" {
		t.Errorf("expected http backend, got %s", m.Name())
	}

	if _, err := reg.Open("http", Options{}); err == nil {
		t.Error("expected error for http backend without URL")
	}

	if _, err := reg.Open("exec", Options{}); !errors.Is(err, ErrNoCommandSpecified) {
		t.Errorf("expected ErrNoCommandSpecified, got %v", err)
	}
}
