// Package attachments stores the photos attached to diary entries.
//
// Every backend hands out references of the form /uploads/<name>, which the
// HTTP layer serves back through Store.Open.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// URLPrefix is the public path stored files are served under.
const URLPrefix = "/uploads/"

var (
	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("attachments: not found")
	// ErrInvalidName is returned for names that could escape the store.
	ErrInvalidName = errors.New("attachments: invalid name")
	// ErrUnsupportedType is returned for uploads that are not images.
	ErrUnsupportedType = errors.New("attachments: unsupported file type")
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store persists uploaded files.
type Store interface {
	// Save writes r under a generated name derived from originalName and
	// returns the public reference.
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	// Open returns the content of a stored file by name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Remove deletes the file behind a public reference.
	Remove(ctx context.Context, ref string) error
}

// CheckExtension returns the lower-cased extension of originalName, or
// ErrUnsupportedType if it is not an accepted image type.
func CheckExtension(originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	return ext, nil
}

// NewName generates a storage name: upload time in milliseconds, a short
// random suffix, and the original extension.
func NewName(now time.Time, originalName string) (string, error) {
	ext, err := CheckExtension(originalName)
	if err != nil {
		return "", err
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, ext), nil
}

// URL returns the public reference for a stored name.
func URL(name string) string {
	return URLPrefix + name
}

// NameFromURL extracts and validates the stored name from a public reference.
func NameFromURL(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, URLPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, ref)
	}
	return name, ValidateName(name)
}

// ValidateName rejects empty names and anything with a path component.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
