// Package audio normalizes reference recordings with ffmpeg.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

const (
	// ReferenceSampleRate is the sample rate references are resampled to.
	ReferenceSampleRate = 22050
	// ReferenceChannels is the channel count references are downmixed to.
	ReferenceChannels = 1
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not installed.
	ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")
	// ErrConversionFailed is returned when ffmpeg conversion fails.
	ErrConversionFailed = errors.New("audio conversion failed")
)

// Converter transcodes audio files to 16-bit PCM WAV.
type Converter struct {
	ffmpegPath string
}

// NewConverter resolves the ffmpeg binary and returns a converter for it.
func NewConverter(binary string) (*Converter, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFFmpegNotFound, binary)
	}
	return &Converter{ffmpegPath: path}, nil
}

// NewConverterWithPath creates a converter with a specific ffmpeg path.
func NewConverterWithPath(path string) *Converter {
	return &Converter{ffmpegPath: path}
}

// NormalizeFile converts the audio at inPath (any format ffmpeg can decode)
// to mono 16-bit PCM WAV at ReferenceSampleRate, written to outPath.
// outPath is overwritten; on failure it is removed.
func (c *Converter) NormalizeFile(ctx context.Context, inPath, outPath string) error {
	if inPath == "" || outPath == "" {
		return errors.New("input and output paths are required")
	}

	if _, err := os.Stat(inPath); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}

	args := []string{
		"-y",
		"-nostdin",
		"-loglevel", "error",
		"-i", inPath,
		"-vn",
		"-ac", strconv.Itoa(ReferenceChannels),
		"-ar", strconv.Itoa(ReferenceSampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(outPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", ErrConversionFailed, bytes.TrimSpace(stderr.Bytes()))
	}

	return nil
}
