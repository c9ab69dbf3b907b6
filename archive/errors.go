package archive

import "github.com/bitfsorg/sponsor-go/fault"

var (
	// ErrUnsafePath indicates an entry would land outside the destination directory.
	ErrUnsafePath = fault.New(fault.KindValidation, "UnsafeArchivePath", "archive: unsafe entry path")

	// ErrTooLarge indicates the unpacked content exceeds the size limit.
	ErrTooLarge = fault.New(fault.KindValidation, "ArchiveTooLarge", "archive: unpacked size exceeds limit")

	// ErrTooManyEntries indicates the archive holds more files than allowed.
	ErrTooManyEntries = fault.New(fault.KindValidation, "ArchiveTooManyEntries", "archive: too many entries")

	// ErrCorrupt indicates the archive could not be decoded.
	ErrCorrupt = fault.New(fault.KindValidation, "CorruptArchive", "archive: corrupt archive")

	// ErrUnsupportedFormat indicates the artifact is neither zip nor gzip-compressed tar.
	ErrUnsupportedFormat = fault.New(fault.KindValidation, "UnsupportedArchive", "archive: unsupported format")

	// ErrExtract indicates a local I/O failure while unpacking.
	ErrExtract = fault.New(fault.KindInternal, "ExtractFailed", "archive: extraction failed")
)
