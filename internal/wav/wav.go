// Package wav provides utilities for reading and writing PCM WAV files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// WAV format constants.
const (
	// HeaderSize is the size of a canonical 44-byte WAV header.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1
)

// Output format of the tone-color converter (22.05 kHz mono 16-bit).
const (
	ConverterSampleRate    = 22050
	ConverterChannels      = 1
	ConverterBitsPerSample = 16
)

// maxHeaderScan bounds how far ReadFileHeader reads looking for the data chunk.
const maxHeaderScan = 64 << 10

var (
	// ErrNotWAV is returned when data does not start with a RIFF/WAVE header.
	ErrNotWAV = errors.New("not a RIFF/WAVE file")
	// ErrMissingChunk is returned when the fmt or data chunk cannot be found.
	ErrMissingChunk = errors.New("missing fmt or data chunk")
)

// Header describes the format of a PCM WAV file.
type Header struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	// DataSize is the declared size of the data chunk in bytes.
	DataSize int
}

// Duration returns the playback length implied by the data chunk size.
func (h Header) Duration() time.Duration {
	bytesPerSecond := h.SampleRate * h.Channels * h.BitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(int64(h.DataSize) * int64(time.Second) / int64(bytesPerSecond))
}

// ParseHeader walks the RIFF chunks in data and returns the format header.
// Only the fmt chunk and the data chunk header need to be present.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Header{}, ErrNotWAV
	}

	var (
		h       Header
		haveFmt bool
	)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return Header{}, fmt.Errorf("%w: short fmt chunk", ErrMissingChunk)
			}
			h.AudioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			h.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			h.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			h.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Header{}, ErrMissingChunk
			}
			h.DataSize = size
			return h, nil
		}

		// Chunks are word aligned.
		offset = body + size + size%2
	}

	return Header{}, ErrMissingChunk
}

// ReadFileHeader reads the header of the WAV file at path.
func ReadFileHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	buf := make([]byte, maxHeaderScan)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Header{}, fmt.Errorf("read %s: %w", path, err)
	}

	return ParseHeader(buf[:n])
}

// WrapRawPCM adds a canonical 44-byte WAV header to raw PCM data.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, HeaderSize)

	// RIFF header
	copy(header[0:4], "RIFF")
	PutLE32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	// fmt subchunk
	copy(header[12:16], "fmt ")
	PutLE32(header[16:20], 16)
	PutLE16(header[20:22], FormatPCM)
	PutLE16(header[22:24], uint16(channels))
	PutLE32(header[24:28], uint32(sampleRate))
	PutLE32(header[28:32], uint32(byteRate))
	PutLE16(header[32:34], uint16(blockAlign))
	PutLE16(header[34:36], uint16(bitsPerSample))

	// data subchunk
	copy(header[36:40], "data")
	PutLE32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

// PutLE16 writes a uint16 value in little-endian format to a byte slice.
func PutLE16(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
}

// PutLE32 writes a uint32 value in little-endian format to a byte slice.
func PutLE32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// CreateMinimal creates a silent WAV file with the given number of samples.
func CreateMinimal(numSamples, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := numSamples * channels * (bitsPerSample / 8)
	return WrapRawPCM(make([]byte, dataSize), sampleRate, channels, bitsPerSample)
}

// CreateSilence creates a silent WAV in the converter's output format lasting d.
func CreateSilence(d time.Duration) []byte {
	samples := int(d * ConverterSampleRate / time.Second)
	return CreateMinimal(samples, ConverterSampleRate, ConverterChannels, ConverterBitsPerSample)
}
