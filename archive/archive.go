// Package archive unpacks uploaded site bundles into a working directory.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxEntries bounds the number of files in one bundle.
const DefaultMaxEntries = 10000

// Entry is one extracted regular file.
type Entry struct {
	// Path is slash-separated and relative to the destination directory.
	Path string
	Size int64
}

// Limits bound what an extractor will write. Zero means no limit.
type Limits struct {
	MaxTotalSize int64
	MaxEntries   int
}

// Extractor unpacks the archive at src into dest, which must exist.
type Extractor interface {
	Extract(ctx context.Context, src, dest string) ([]Entry, error)
}

// ForFile picks an extractor by sniffing the content of src.
func ForFile(src string, limits Limits) (Extractor, error) {
	mt, err := mimetype.DetectFile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtract, err)
	}
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return &ZipExtractor{Limits: limits}, nil
		case m.Is("application/gzip"):
			return &TarGzExtractor{Limits: limits}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
}

// entryPath validates an archive member name and returns its clean
// slash-separated form.
func entryPath(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '\\') || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return clean, nil
}

// writer enforces Limits across the entries of one extraction.
type writer struct {
	dest    string
	limits  Limits
	written int64
	entries []Entry
}

func (w *writer) mkdir(rel string) error {
	if err := os.MkdirAll(filepath.Join(w.dest, filepath.FromSlash(rel)), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrExtract, err)
	}
	return nil
}

func (w *writer) file(ctx context.Context, rel string, r io.Reader, modTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.limits.MaxEntries > 0 && len(w.entries) >= w.limits.MaxEntries {
		return fmt.Errorf("%w: more than %d", ErrTooManyEntries, w.limits.MaxEntries)
	}

	target := filepath.Join(w.dest, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrExtract, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: duplicate entry %q", ErrCorrupt, rel)
		}
		return fmt.Errorf("%w: creating %s: %w", ErrExtract, rel, err)
	}

	// Header sizes are not trusted; count what is actually inflated.
	src := r
	if w.limits.MaxTotalSize > 0 {
		src = io.LimitReader(r, w.limits.MaxTotalSize-w.written+1)
	}
	n, err := io.Copy(f, src)
	w.written += n
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %w", ErrExtract, cerr)
	}
	if err != nil {
		if errors.Is(err, ErrExtract) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, rel, err)
	}
	if w.limits.MaxTotalSize > 0 && w.written > w.limits.MaxTotalSize {
		return fmt.Errorf("%w: more than %d bytes", ErrTooLarge, w.limits.MaxTotalSize)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(target, modTime, modTime); err != nil {
			return fmt.Errorf("%w: %w", ErrExtract, err)
		}
	}

	w.entries = append(w.entries, Entry{Path: rel, Size: n})
	return nil
}
