// Package storage manages the on-disk layout for uploads, generated outputs
// and extractor scratch space.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

const (
	UploadsDir   = "uploads"
	OutputsDir   = "outputs"
	ProcessedDir = "processed"
)

var (
	// ErrEmptyFilename is returned when an upload has no usable filename.
	ErrEmptyFilename = errors.New("upload has no filename")
	// ErrInvalidName is returned for names that would escape their directory.
	ErrInvalidName = errors.New("invalid file name")
)

// Layout resolves the working directories under a data root.
type Layout struct {
	root string
}

// NewLayout returns a layout rooted at dataDir, resolved to an absolute path.
// Paths from the layout are handed to the model runtime, which may run with
// a different working directory. An empty dataDir means the current directory.
func NewLayout(dataDir string) (*Layout, error) {
	if dataDir == "" {
		dataDir = "."
	}
	root, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir %s: %w", dataDir, err)
	}
	return &Layout{root: root}, nil
}

// Root returns the data root.
func (l *Layout) Root() string { return l.root }

// Uploads returns the uploads directory.
func (l *Layout) Uploads() string { return filepath.Join(l.root, UploadsDir) }

// Outputs returns the outputs directory.
func (l *Layout) Outputs() string { return filepath.Join(l.root, OutputsDir) }

// Processed returns the extractor scratch directory.
func (l *Layout) Processed() string { return filepath.Join(l.root, ProcessedDir) }

// Ensure creates all working directories. It is idempotent.
func (l *Layout) Ensure() error {
	for _, dir := range []string{l.Uploads(), l.Outputs(), l.Processed()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// OutputPath returns the path of name inside the outputs directory, or
// ErrInvalidName if name is empty or contains path separators.
func (l *Layout) OutputPath(name string) (string, error) {
	if !isElement(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(l.Outputs(), name), nil
}

// SafeName reduces a client-supplied filename to its base name. Names that
// reduce to nothing usable yield ErrEmptyFilename.
func SafeName(name string) (string, error) {
	// Browsers on Windows may send backslash paths.
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(name)
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", ErrEmptyFilename
	}
	return base, nil
}

// Stage saves an uploaded file into uploads/<namespace>/<field>/ and returns
// its path. The namespace is normally a per-request UUID; field keeps two
// uploads of one request apart even when they share a filename.
func (l *Layout) Stage(namespace, field string, fh *multipart.FileHeader) (string, error) {
	if !isElement(namespace) {
		return "", fmt.Errorf("%w: namespace %q", ErrInvalidName, namespace)
	}
	if !isElement(field) {
		return "", fmt.Errorf("%w: field %q", ErrInvalidName, field)
	}

	name, err := SafeName(fh.Filename)
	if err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload %s: %w", name, err)
	}
	defer src.Close()

	return l.save(filepath.Join(l.Uploads(), namespace, field), name, src)
}

// isElement reports whether s is a single usable path element.
func isElement(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

func (l *Layout) save(dir, name string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
