package deploy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

// checkManifest rejects malformed entries before anything is unpacked.
func checkManifest(entries []ManifestEntry, allowed []string) ([]ManifestEntry, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyManifest
	}
	out := make([]ManifestEntry, 0, len(entries))
	for _, e := range entries {
		rel, err := cleanManifestPath(e.Path)
		if err != nil {
			return nil, err
		}
		ext := strings.ToLower(path.Ext(rel))
		if !lo.Contains(allowed, ext) {
			return nil, fmt.Errorf("%w: %q in %s", ErrInvalidFileType, ext, rel)
		}
		out = append(out, ManifestEntry{Path: rel, ContentType: strings.TrimSpace(e.ContentType)})
	}
	return lo.UniqBy(out, func(e ManifestEntry) string { return e.Path }), nil
}

func cleanManifestPath(p string) (string, error) {
	if p == "" || strings.ContainsRune(p, '\\') || strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidManifestPath, p)
	}
	clean := path.Clean(strings.TrimPrefix(p, "./"))
	if clean == "." || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidManifestPath, p)
	}
	return clean, nil
}

// checkUnpacked verifies every manifest entry exists as a non-empty regular
// file under dir and that together they fit in maxTotal. It returns the total.
func checkUnpacked(dir string, entries []ManifestEntry, maxTotal int64) (int64, error) {
	var total int64
	for _, e := range entries {
		fi, err := os.Lstat(filepath.Join(dir, filepath.FromSlash(e.Path)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return 0, fmt.Errorf("%w: %s", ErrFileMissing, e.Path)
			}
			return 0, fmt.Errorf("%w: %w", ErrWorkArea, err)
		}
		if !fi.Mode().IsRegular() {
			return 0, fmt.Errorf("%w: %s is not a regular file", ErrFileMissing, e.Path)
		}
		if fi.Size() == 0 {
			return 0, fmt.Errorf("%w: %s", ErrEmptyFile, e.Path)
		}
		total += fi.Size()
	}
	if maxTotal > 0 && total > maxTotal {
		return 0, fmt.Errorf("%w: %s exceeds %s", ErrTotalSizeExceeded,
			humanize.IBytes(uint64(total)), humanize.IBytes(uint64(maxTotal)))
	}
	return total, nil
}
