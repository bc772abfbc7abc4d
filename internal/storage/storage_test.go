package storage_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/voiceclone-go/internal/storage"
)

// fileHeader builds a real *multipart.FileHeader by parsing a form.
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("voice_file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	t.Cleanup(func() { _ = req.MultipartForm.RemoveAll() })

	fhs := req.MultipartForm.File["voice_file"]
	require.Len(t, fhs, 1)
	return fhs[0]
}

func TestLayout_Ensure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := newLayout(t, root)
	require.NoError(t, l.Ensure())
	require.NoError(t, l.Ensure())

	for _, dir := range []string{l.Uploads(), l.Outputs(), l.Processed()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.Equal(t, filepath.Join(root, "outputs"), l.Outputs())
}

func newLayout(t *testing.T, root string) *storage.Layout {
	t.Helper()
	l, err := storage.NewLayout(root)
	require.NoError(t, err)
	return l
}

func TestNewLayout_EmptyRootIsWorkingDir(t *testing.T) {
	t.Parallel()

	wd, err := os.Getwd()
	require.NoError(t, err)

	l := newLayout(t, "")
	assert.Equal(t, wd, l.Root())
	assert.Equal(t, filepath.Join(wd, "uploads"), l.Uploads())
}

func TestNewLayout_RelativeRootIsResolved(t *testing.T) {
	t.Parallel()

	l := newLayout(t, "data/../data")
	for _, dir := range []string{l.Root(), l.Uploads(), l.Outputs(), l.Processed()} {
		assert.True(t, filepath.IsAbs(dir), dir)
	}

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "data", "outputs"), l.Outputs())
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "voice.mp3", want: "voice.mp3"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `C:\Users\me\voice.wav`, want: "voice.wav"},
		{in: "/abs/path/ref.wav", want: "ref.wav"},
		{in: "", wantErr: true},
		{in: "..", wantErr: true},
		{in: "/", wantErr: true},
	}

	for _, tt := range tests {
		got, err := storage.SafeName(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, storage.ErrEmptyFilename, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLayout_Stage(t *testing.T) {
	t.Parallel()

	l := newLayout(t, t.TempDir())
	require.NoError(t, l.Ensure())

	path, err := l.Stage("req-1", "voice", fileHeader(t, "../voice.wav", []byte("RIFFdata")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.Uploads(), "req-1", "voice", "voice.wav"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(data))
}

func TestLayout_StageNamespacesDoNotCollide(t *testing.T) {
	t.Parallel()

	l := newLayout(t, t.TempDir())

	a, err := l.Stage("a", "voice", fileHeader(t, "voice.wav", []byte("first")))
	require.NoError(t, err)
	b, err := l.Stage("b", "voice", fileHeader(t, "voice.wav", []byte("second")))
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	dataA, err := os.ReadFile(a)
	require.NoError(t, err)
	dataB, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, "first", string(dataA))
	assert.Equal(t, "second", string(dataB))
}

func TestLayout_StageRejectsBadNamespace(t *testing.T) {
	t.Parallel()

	l := newLayout(t, t.TempDir())
	_, err := l.Stage("../x", "voice", fileHeader(t, "voice.wav", []byte("x")))
	require.ErrorIs(t, err, storage.ErrInvalidName)

	_, err = l.Stage("req", "../style", fileHeader(t, "voice.wav", []byte("x")))
	require.ErrorIs(t, err, storage.ErrInvalidName)
}

func TestLayout_StageFieldsWithSameFilename(t *testing.T) {
	t.Parallel()

	l := newLayout(t, t.TempDir())

	voice, err := l.Stage("req", "voice", fileHeader(t, "recording.wav", []byte("VOICE")))
	require.NoError(t, err)
	style, err := l.Stage("req", "style", fileHeader(t, "recording.wav", []byte("STYLE")))
	require.NoError(t, err)
	require.NotEqual(t, voice, style)

	got, err := os.ReadFile(voice)
	require.NoError(t, err)
	assert.Equal(t, "VOICE", string(got))
}

func TestLayout_OutputPath(t *testing.T) {
	t.Parallel()

	l := newLayout(t, "/data")

	p, err := l.OutputPath("cloned_1.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "outputs", "cloned_1.wav"), p)

	for _, bad := range []string{"", ".", "..", "../secret", `..\secret`, "a/b.wav"} {
		_, err := l.OutputPath(bad)
		assert.ErrorIs(t, err, storage.ErrInvalidName, bad)
	}
}
