package upload

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openhearth/backend-donate/internal/common"
)

// Handler stores multipart file uploads on local disk.
type Handler struct {
	Dir      string
	MaxBytes int64
	Logger   zerolog.Logger
}

// Upload handles POST /upload with a multipart "file" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "uploaded file exceeds the size limit", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart payload", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "FILE_REQUIRED", "file field is required", nil)
		return
	}
	defer file.Close()

	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		h.Logger.Error().Err(err).Msg("create upload directory")
		common.JSONError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "unable to store file", nil)
		return
	}

	name := uuid.NewString() + "-" + sanitizeFilename(header.Filename)
	dst, err := os.Create(filepath.Join(h.Dir, name))
	if err != nil {
		h.Logger.Error().Err(err).Msg("create upload file")
		common.JSONError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "unable to store file", nil)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		h.Logger.Error().Err(err).Msg("write upload file")
		common.JSONError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "unable to store file", nil)
		return
	}

	h.Logger.Info().Str("filename", name).Int64("size", header.Size).Msg("file uploaded")
	common.JSON(w, http.StatusCreated, map[string]string{
		"filename": name,
		"url":      "/uploads/" + name,
	})
}

// sanitizeFilename strips path components and characters that are unsafe in
// a URL path segment.
func sanitizeFilename(raw string) string {
	base := filepath.Base(strings.TrimSpace(raw))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// FileServer serves stored uploads under the given URL prefix. Directory
// requests are rejected so the upload inventory cannot be enumerated.
func FileServer(dir string) http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
