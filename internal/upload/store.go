package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var allowedExtensions = map[string]struct{}{
	"txt": {}, "pdf": {}, "png": {}, "jpg": {}, "jpeg": {},
	"gif": {}, "mp4": {}, "avi": {}, "mov": {}, "wmv": {},
}

var (
	ErrNotAllowed  = errors.New("file type not allowed")
	ErrBadFilename = errors.New("invalid filename")
	ErrNotFound    = errors.New("file not found")
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store keeps product attachments in a single flat directory.
type Store struct {
	Dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Allowed reports whether the filename carries an extension from the
// allow-list. A name without a dot is never allowed.
func Allowed(filename string) bool {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return false
	}
	_, ok := allowedExtensions[strings.ToLower(filename[i+1:])]
	return ok
}

// Sanitize strips any path components and collapses hostile characters,
// keeping alphanumerics, dash, underscore and dot.
func Sanitize(filename string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "", ErrBadFilename
	}
	return name, nil
}

// Save validates and stores an uploaded file, returning the stored
// name. An existing file is never overwritten: on collision a short
// random fragment is inserted before the extension.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if !Allowed(fh.Filename) {
		return "", ErrNotAllowed
	}
	name, err := Sanitize(fh.Filename)
	if err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	for {
		dst, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			name = withSuffix(name)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("creating file: %w", err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			os.Remove(dst.Name())
			return "", fmt.Errorf("writing file: %w", err)
		}
		if err := dst.Close(); err != nil {
			return "", fmt.Errorf("closing file: %w", err)
		}
		return name, nil
	}
}

func withSuffix(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	frag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return base + "-" + frag + ext
}

// Resolve maps a requested name to a path inside the store, rejecting
// traversal attempts and unknown files.
func (s *Store) Resolve(filename string) (string, error) {
	name, err := Sanitize(filename)
	if err != nil || name != filename {
		return "", ErrNotFound
	}
	path := filepath.Join(s.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

// Remove deletes a stored file, ignoring empty names and files that
// are already gone.
func (s *Store) Remove(filename string) error {
	if filename == "" {
		return nil
	}
	name, err := Sanitize(filename)
	if err != nil {
		return nil
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}
