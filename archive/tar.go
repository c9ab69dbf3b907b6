package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// TarGzExtractor unpacks gzip-compressed tar archives.
type TarGzExtractor struct {
	Limits Limits
}

var _ Extractor = (*TarGzExtractor)(nil)

func (t *TarGzExtractor) Extract(ctx context.Context, src, dest string) ([]Entry, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtract, err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	w := &writer{dest: dest, limits: t.Limits}
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return w.entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		rel, err := entryPath(hdr.Name)
		if err != nil {
			return nil, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			err = w.mkdir(rel)
		case tar.TypeReg:
			err = w.file(ctx, rel, tr, hdr.ModTime)
		case tar.TypeXGlobalHeader:
			// pax metadata only
		default:
			err = fmt.Errorf("%w: %q is not a regular file", ErrUnsafePath, hdr.Name)
		}
		if err != nil {
			return nil, err
		}
	}
}
