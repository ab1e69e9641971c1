// Package uploads persists request bodies to uniquely named temp files for
// the lifetime of one analysis.
package uploads

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"audiofeedback/internal/models"

	"github.com/google/uuid"
)

const dirName = "audiofeedback-uploads"

var ErrTooLarge = errors.New("upload exceeds size limit")

// Store writes uploads under one private directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewStore creates <baseDir>/audiofeedback-uploads. An empty baseDir means
// os.TempDir(). maxBytes <= 0 disables the size limit.
func NewStore(baseDir string, maxBytes int64, logger *slog.Logger) (*Store, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Join(baseDir, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save copies the multipart file into a fresh temp file. The client
// filename only contributes a sanitised extension.
func (s *Store) Save(fh *multipart.FileHeader) (*models.TempUpload, error) {
	if fh == nil {
		return nil, errors.New("file header is required")
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return nil, ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	return s.SaveReader(fh.Filename, src)
}

// SaveReader is Save for an arbitrary reader.
func (s *Store) SaveReader(filename string, r io.Reader) (*models.TempUpload, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+sanitizeExt(filename))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	hash := sha256.New()
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, err := io.Copy(io.MultiWriter(dst, hash), src)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	return &models.TempUpload{
		ID:         id,
		FileName:   filename,
		StoredPath: path,
		Size:       written,
		Digest:     hex.EncodeToString(hash.Sum(nil)),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Remove deletes the temp file. A missing file is not an error.
func (s *Store) Remove(upload *models.TempUpload) {
	if upload == nil || upload.StoredPath == "" {
		return
	}
	if err := os.Remove(upload.StoredPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove temp upload failed", "path", upload.StoredPath, "error", err)
	}
}

// sanitizeExt keeps a short alphanumeric extension and drops everything
// else from the client filename.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
