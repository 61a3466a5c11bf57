package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingTitle indicates a timeline write without a title.
	ErrMissingTitle = errors.New("title is required")

	// ErrMissingDate indicates a timeline or upload write without a date.
	ErrMissingDate = errors.New("date is required")

	// ErrMissingDisplayName indicates an upload without a display name.
	ErrMissingDisplayName = errors.New("display name is required")

	// ErrUnsupportedImageType indicates an upload that is not a
	// JPEG, PNG, GIF, or WEBP image.
	ErrUnsupportedImageType = errors.New("unsupported image type")

	// ErrImageTooLarge indicates an upload over the configured size ceiling.
	ErrImageTooLarge = errors.New("image exceeds the size limit")
)

// FetchError is a fatal failure reading one of the backing record stores.
// It fails the whole reconciliation pass and is surfaced to the user as an
// inline error state, recoverable by a manual refresh.
type FetchError struct {
	Store string // "memory_timeline" or "memory_details"
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Store, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UploadError is a failure in the upload pipeline: the blob upload or one
// of the two metadata writes. Stage names the step that failed.
type UploadError struct {
	Stage string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed at %s: %v", e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ProvisionError is a failure ensuring the object-storage bucket exists and
// is publicly readable. Callers log and continue; a missing bucket later
// surfaces as empty lists, never a crash.
type ProvisionError struct {
	Bucket string
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning bucket %q: %v", e.Bucket, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }
