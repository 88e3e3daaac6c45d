// Package attachments stores uploaded files on disk under generated keys.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// DefaultMaxBytes is the upload limit when none is configured.
const DefaultMaxBytes int64 = 10 << 20

var (
	ErrEmpty    = errors.New("file is empty")
	ErrTooLarge = errors.New("file too large")
	ErrBadKey   = errors.New("invalid storage key")
	ErrMissing  = errors.New("file not found")
)

// TooLargeError reports an upload over the limit.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file exceeds the %s limit", humanize.IBytes(uint64(e.Limit)))
}

func (e *TooLargeError) Unwrap() error { return ErrTooLarge }

// IsTooLarge reports whether err is a TooLargeError.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}

// Blobs is a directory of attachment files keyed by "<userID>/<uuid><ext>".
type Blobs struct {
	root string
}

func New(root string) (*Blobs, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &Blobs{root: root}, nil
}

// Root returns the base directory.
func (b *Blobs) Root() string { return b.root }

// Put copies r into a new blob for userID and returns its key and size. A
// maxBytes of zero or less means DefaultMaxBytes.
func (b *Blobs) Put(userID, filename string, r io.Reader, maxBytes int64) (string, int64, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if userID == "" || strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return "", 0, ErrBadKey
	}

	key := userID + "/" + uuid.NewString() + extension(filename)
	p, err := b.path(key)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", 0, fmt.Errorf("create user directory: %w", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create blob: %w", err)
	}

	// Read one byte past the limit to detect oversize uploads.
	n, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		os.Remove(p)
		return "", 0, fmt.Errorf("write blob: %w", err)
	case n == 0:
		os.Remove(p)
		return "", 0, ErrEmpty
	case n > maxBytes:
		os.Remove(p)
		return "", 0, &TooLargeError{Limit: maxBytes}
	}
	return key, n, nil
}

// Open returns the blob for key.
func (b *Blobs) Open(key string) (*os.File, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", key, ErrMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// Remove deletes the blob for key. A missing blob is not an error.
func (b *Blobs) Remove(key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (b *Blobs) path(key string) (string, error) {
	if key == "" || strings.Contains(key, `\`) || path.IsAbs(key) {
		return "", ErrBadKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", ErrBadKey
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

// extension keeps a short, safe suffix of the original name.
func extension(filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, `\`, "/")))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
