package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Storage holds the image bytes of the current session
type Storage interface {
	// Save saves an image and returns its handle
	Save(filename string, data []byte) (string, error)

	// Get retrieves an image by handle
	Get(ref string) ([]byte, error)

	// Delete removes an image
	Delete(ref string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves an image to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filename)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves an image from local storage
func (l *LocalStorage) Get(ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, ref))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes an image from local storage
func (l *LocalStorage) Delete(ref string) error {
	if err := os.Remove(filepath.Join(l.basePath, ref)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Purge removes every file left in the storage directory. Images belong to a
// single process run, so leftovers from a crash are never valid handles.
func (l *LocalStorage) Purge() error {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return fmt.Errorf("reading storage directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(l.basePath, entry.Name())); err != nil {
			return fmt.Errorf("deleting file: %w", err)
		}
	}
	return nil
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames so they are safe on disk
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	ext = unsafeFilenameChars.ReplaceAllString(ext[min(len(ext), 1):], "")
	if ext != "" {
		ext = "." + ext
	}

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "sheet"
	}

	return base + ext
}
