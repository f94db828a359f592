package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jlynch25/kaizen_api/internal/lib/apperr"
)

const (
	MsgNoImage       = "No image uploaded"
	MsgNotAnImage    = "Only image uploads are allowed"
	MsgUploadTooBig  = "Upload too large"
	imageField       = "image"
	uploadsURLPrefix = "/uploads/"
	sniffLen         = 512
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// parseMultipart bounds the body by MaxUploadBytes before parsing it.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation(MsgUploadTooBig)
		}
		return apperr.Validation(msgInvalidBody)
	}
	return nil
}

// saveImage stores the form's image under a random name and returns its
// public path. ok is false when no image was sent.
func (s *Server) saveImage(r *http.Request) (url string, ok bool, err error) {
	file, header, err := r.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", false, nil
		}
		return "", false, apperr.Validation(msgInvalidBody)
	}
	defer file.Close()

	ext, err := imageExtension(file, header)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", false, apperr.Internal(fmt.Errorf("create upload dir: %w", err))
	}

	name := uuid.NewString() + ext
	if err := writeUpload(filepath.Join(s.cfg.UploadDir, name), file); err != nil {
		return "", false, apperr.Internal(err)
	}
	return uploadsURLPrefix + name, true, nil
}

// writeUpload copies src into a new file at path. A partly written file is removed.
func writeUpload(path string, src io.Reader) error {
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}

	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write upload: %w", err)
	}
	return nil
}

// imageExtension sniffs the content; the client's file name only decides the
// extension when it agrees with the sniffed type.
func imageExtension(file multipart.File, header *multipart.FileHeader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", apperr.Validation(msgInvalidBody)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", apperr.Internal(fmt.Errorf("rewind upload: %w", err))
	}

	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.Validation(MsgNotAnImage)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != "" && mime.TypeByExtension(ext) == contentType {
		return ext, nil
	}
	if known, ok := imageExtensions[contentType]; ok {
		return known, nil
	}
	return "", nil
}

// removeUpload deletes a file saved by saveImage, used when the request fails afterwards.
func (s *Server) removeUpload(url string) {
	name := strings.TrimPrefix(url, uploadsURLPrefix)
	if name == "" || name == url {
		return
	}
	if err := os.Remove(filepath.Join(s.cfg.UploadDir, filepath.Base(name))); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.WithError(err).WithField("file", name).Warn("failed to remove upload")
	}
}

// uploadsHandler serves stored images without directory listings.
func (s *Server) uploadsHandler() http.Handler {
	files := http.FileServer(http.Dir(s.cfg.UploadDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") || path.Base(r.URL.Path) != strings.TrimPrefix(r.URL.Path, "/") {
			s.writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
			return
		}
		files.ServeHTTP(w, r)
	})
}
