// Package upload stores files received from clients so that analysis tasks
// can read them after the request has returned.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/phrazzld/analysis-api/internal/platform/logger"
)

var (
	// ErrEmptyFilename is returned when the client sent no usable file name.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrTooLarge is returned when an upload exceeds the configured size.
	ErrTooLarge = errors.New("upload exceeds maximum size")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces a client-supplied name to a safe base name. It
// returns "" when nothing usable is left.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	return name
}

// File describes a cached upload.
type File struct {
	// Name is the sanitized original file name.
	Name     string
	Path     string
	Size     int64
	MIMEType string
}

// Cache writes uploads to a directory as "<uuid>_<sanitized name>".
type Cache struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewCache creates the cache directory if needed. maxBytes <= 0 disables the
// size limit.
func NewCache(dir string, maxBytes int64, log *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   log.With("component", "upload_cache"),
	}, nil
}

// MaxBytes returns the configured size limit.
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// Save copies r into the cache under a fresh name derived from filename.
func (c *Cache) Save(ctx context.Context, filename string, r io.Reader) (File, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		return File{}, ErrEmptyFilename
	}

	path := filepath.Join(c.dir, uuid.NewString()+"_"+name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return File{}, fmt.Errorf("failed to create cached file: %w", err)
	}

	src := r
	if c.maxBytes > 0 {
		src = io.LimitReader(r, c.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && c.maxBytes > 0 && n > c.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return File{}, err
		}
		return File{}, fmt.Errorf("failed to write cached file: %w", err)
	}

	out := File{Name: name, Path: path, Size: n, MIMEType: "application/octet-stream"}
	if mt, err := mimetype.DetectFile(path); err == nil {
		out.MIMEType = mt.String()
	}

	logger.FromContextOrDefault(ctx, c.logger).Info("upload cached",
		"filename", name,
		"path", path,
		"size", n,
		"mime_type", out.MIMEType)
	return out, nil
}
