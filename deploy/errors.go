package deploy

import (
	"fmt"

	"github.com/bitfsorg/sponsor-go/fault"
)

var (
	// ErrMissingArchive indicates the request carries no uploaded archive.
	ErrMissingArchive = fault.New(fault.KindValidation, "MissingArchive", "deploy: no archive provided")

	// ErrInvalidTier indicates an unknown sponsorship tier.
	ErrInvalidTier = fault.New(fault.KindValidation, "InvalidTier", "deploy: invalid pool tier")

	// ErrMissingPoolID indicates a pool-tier request without a pool id.
	ErrMissingPoolID = fault.New(fault.KindValidation, "MissingPoolID", "deploy: pool tier requires a pool id")

	// ErrEmptyManifest indicates the file manifest lists nothing to publish.
	ErrEmptyManifest = fault.New(fault.KindValidation, "EmptyManifest", "deploy: empty file manifest")

	// ErrInvalidManifest indicates the manifest could not be decoded.
	ErrInvalidManifest = fault.New(fault.KindValidation, "InvalidManifest", "deploy: invalid file manifest")

	// ErrHashMismatch indicates the archive does not hash to the signed content hash.
	ErrHashMismatch = fault.New(fault.KindValidation, "HashMismatch", "deploy: archive hash mismatch")

	// ErrInvalidManifestPath indicates a manifest path that is absolute or leaves the work area.
	ErrInvalidManifestPath = fault.New(fault.KindValidation, "InvalidManifestPath", "deploy: invalid manifest path")

	// ErrInvalidFileType indicates a manifest entry with a disallowed extension.
	ErrInvalidFileType = fault.New(fault.KindValidation, "InvalidFileType", "deploy: invalid file type")

	// ErrTotalSizeExceeded indicates the manifest files exceed the size limit.
	ErrTotalSizeExceeded = fault.New(fault.KindValidation, "TotalSizeExceeded", "deploy: total size exceeded")

	// ErrEmptyFile indicates a manifest entry with no content; the network
	// rejects empty data items.
	ErrEmptyFile = fault.New(fault.KindValidation, "EmptyFile", "deploy: file is empty")

	// ErrFileMissing indicates a manifest entry absent from the archive.
	ErrFileMissing = fault.New(fault.KindValidation, "FileMissing", "deploy: file not found in archive")

	// ErrPublishFailed indicates a file could not be published.
	ErrPublishFailed = fault.New(fault.KindPublish, "PublishFailed", "deploy: publish failed")

	// ErrWorkArea indicates the isolated working directory could not be prepared.
	ErrWorkArea = fault.New(fault.KindInternal, "WorkAreaFailed", "deploy: work area unavailable")
)

// PublishError reports a batch that stopped at its first failed file.
// Files already published are permanent and listed here; Spent is what the
// ledger was reconciled to.
type PublishError struct {
	Files []PublishedFile
	Spent uint64
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("deploy: publish failed after %d file(s): %v", len(e.Files), e.Err)
}

// Unwrap exposes ErrPublishFailed ahead of the network cause.
func (e *PublishError) Unwrap() []error {
	return []error{ErrPublishFailed, e.Err}
}
