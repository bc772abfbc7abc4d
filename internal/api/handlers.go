package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/voiceclone-go/internal/clone"
	"github.com/dgnsrekt/voiceclone-go/internal/storage"
)

// Multipart parts beyond this size spill to temporary files.
const maxMemory = 8 << 20

const (
	msgNoVoiceFile     = "No voice file provided"
	msgNoSelectedVoice = "No selected file for tone color"
	msgInvalidRequest  = "Invalid request"
	msgTooLarge        = "Upload too large"
	msgSaveFailed      = "Failed to save upload"
	msgCloneFailed     = "Failed to clone voice"
)

// GenerateResponse represents the response body for /generate.
type GenerateResponse struct {
	AudioFile string `json:"audio_file"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// handleHealthz handles GET /healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleIndex serves the front-end page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := fs.ReadFile(staticFiles, "static/index.html")
	if err != nil {
		http.Error(w, "index not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleGenerate handles POST /generate requests.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	form, status, msg := s.parseForm(r)
	if form == nil {
		writeError(w, status, msg)
		return
	}
	defer form.RemoveAll()

	voice := firstFile(form, "voice_file")
	if voice == nil {
		if emptySelection(form, "voice_file") {
			writeError(w, http.StatusBadRequest, msgNoSelectedVoice)
			return
		}
		writeError(w, http.StatusBadRequest, msgNoVoiceFile)
		return
	}

	text := firstValue(form, "text")
	if text == "" {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	namespace := s.newID()

	voicePath, err := s.layout.Stage(namespace, "voice", voice)
	if err != nil {
		s.logger.Error("failed to stage voice file", "error", err, "request_id", reqID)
		writeError(w, http.StatusInternalServerError, msgSaveFailed)
		return
	}

	var stylePath string
	if style := firstFile(form, "style_file"); style != nil {
		stylePath, err = s.layout.Stage(namespace, "style", style)
		if err != nil {
			s.logger.Error("failed to stage style file", "error", err, "request_id", reqID)
			writeError(w, http.StatusInternalServerError, msgSaveFailed)
			return
		}
	}

	s.logger.Info("generate request accepted",
		"request_id", reqID,
		"upload", namespace,
		"text_length", len(text),
		"style", stylePath != "",
	)

	res, err := s.cloner.Clone(r.Context(), clone.Request{
		Text:      text,
		VoicePath: voicePath,
		StylePath: stylePath,
	})
	if err != nil {
		s.logger.Error("voice cloning failed",
			"error", err,
			"kind", clone.KindOf(err).String(),
			"request_id", reqID,
		)
		writeError(w, http.StatusInternalServerError, msgCloneFailed)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{AudioFile: storage.OutputsDir + "/" + res.Filename})
}

// parseForm reads the multipart body. A non-multipart body is treated as a
// form without parts. On failure it returns a nil form with the response to send.
func (s *Server) parseForm(r *http.Request) (*multipart.Form, int, string) {
	err := r.ParseMultipartForm(maxMemory)
	switch {
	case err == nil:
		return r.MultipartForm, 0, ""
	case errors.Is(err, http.ErrNotMultipart):
		return &multipart.Form{}, 0, ""
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.logger.Warn("upload exceeds limit", "limit", tooLarge.Limit)
		return nil, http.StatusRequestEntityTooLarge, msgTooLarge
	}

	s.logger.Warn("failed to parse multipart form", "error", err)
	return nil, http.StatusBadRequest, msgInvalidRequest
}

// firstFile returns the first uploaded file for field. Parts sent with an
// empty filename are stored as values by the multipart reader and never
// show up here.
func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	for _, fh := range form.File[field] {
		if fh != nil && fh.Filename != "" {
			return fh
		}
	}
	return nil
}

// emptySelection reports whether field was sent as a file part with an empty
// filename, which is how browsers submit a file input left blank. A plain
// text field of the same name does not count.
func emptySelection(form *multipart.Form, field string) bool {
	for _, v := range form.Value[field] {
		if v == "" {
			return true
		}
	}
	return false
}

func firstValue(form *multipart.Form, field string) string {
	if vals := form.Value[field]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// handleOutput handles GET /outputs/{filename} requests.
func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	path, err := s.layout.OutputPath(chi.URLParam(r, "filename"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, path)
}
