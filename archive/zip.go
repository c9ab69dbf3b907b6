package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ZipExtractor unpacks zip archives.
type ZipExtractor struct {
	Limits Limits
}

var _ Extractor = (*ZipExtractor)(nil)

// Extract unpacks src into dest. Symlinks and entries escaping dest are
// rejected; directories are created as needed.
func (z *ZipExtractor) Extract(ctx context.Context, src, dest string) ([]Entry, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer func() { _ = zr.Close() }()

	w := &writer{dest: dest, limits: z.Limits}
	for _, zf := range zr.File {
		rel, err := entryPath(zf.Name)
		if err != nil {
			return nil, err
		}
		mode := zf.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(zf.Name, "/"):
			if err := w.mkdir(rel); err != nil {
				return nil, err
			}
			continue
		case !mode.IsRegular():
			return nil, fmt.Errorf("%w: %q is not a regular file", ErrUnsafePath, zf.Name)
		}

		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, zf.Name, err)
		}
		err = w.file(ctx, rel, rc, zf.Modified)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
	}
	return w.entries, nil
}
