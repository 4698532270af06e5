// Package asset stores uploaded images in the upload directory and turns the
// stored filenames into absolute URLs.
package asset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-catalog/internal/fsutil"
)

// DefaultExt is used when an upload does not declare a usable extension.
const DefaultExt = ".png"

var (
	// ErrUploadFailed is returned when an attachment could not be stored.
	ErrUploadFailed = errors.New("upload failed")
	// ErrNoPayload is returned (wrapped in ErrUploadFailed) for a missing or empty attachment.
	ErrNoPayload = errors.New("no payload")
	// ErrInvalidName is returned when a filename would escape the upload directory.
	ErrInvalidName = errors.New("invalid asset name")
)

// Origin is the scheme and host a request arrived on.
type Origin struct {
	Scheme string
	Host   string
}

// Manager writes assets into Dir and resolves them under Route.
type Manager struct {
	dir   string
	route string
	now   func() time.Time
	token func() string
}

// NewManager returns a Manager for dir whose files are served under route
// (for example "/uploads").
func NewManager(dir, route string) *Manager {
	return &Manager{
		dir:   dir,
		route: strings.Trim(route, "/"),
		now:   time.Now,
		token: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:12] },
	}
}

// Dir returns the upload directory.
func (m *Manager) Dir() string { return m.dir }

// Route returns the URL path prefix, with a leading slash.
func (m *Manager) Route() string { return "/" + m.route }

// EnsureDir creates the upload directory.
func (m *Manager) EnsureDir() error {
	return os.MkdirAll(m.dir, 0o755)
}

// Store writes the payload under a new filename and returns that name.
// Names combine a millisecond timestamp with a random token, so two uploads
// in the same millisecond still get distinct files.
func (m *Manager) Store(r io.Reader, ext string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, ErrNoPayload)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read payload: %v", ErrUploadFailed, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, ErrNoPayload)
	}

	name := m.newName(ext)
	if err := fsutil.WriteFileAtomic(filepath.Join(m.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return name, nil
}

// StoreBytes is Store for an in-memory payload.
func (m *Manager) StoreBytes(data []byte, ext string) (string, error) {
	return m.Store(bytes.NewReader(data), ext)
}

// ResolveURL returns <scheme>://<host>/<route>/<filename>.  It does no I/O.
func (m *Manager) ResolveURL(filename string, o Origin) string {
	scheme := o.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if m.route == "" {
		return fmt.Sprintf("%s://%s/%s", scheme, o.Host, filename)
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, o.Host, m.route, filename)
}

// Path returns the on-disk location of a stored asset.
func (m *Manager) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	return filepath.Join(m.dir, filename), nil
}

// Remove deletes a stored asset.  A file that is already gone is not an error.
func (m *Manager) Remove(filename string) error {
	p, err := m.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (m *Manager) newName(ext string) string {
	ms := strconv.FormatInt(m.now().UnixMilli(), 10)
	return "image_" + ms + "_" + m.token() + SanitizeExt(ext)
}

// SanitizeExt normalizes a declared extension: lower case, alphanumeric, at
// most eight characters.  Anything else falls back to DefaultExt.
func SanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" || len(ext) > 8 {
		return DefaultExt
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return DefaultExt
		}
	}
	return "." + ext
}
