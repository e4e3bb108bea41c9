package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no object has the requested id.
	ErrNotFound = errors.New("object not found")

	// ErrFallback marks a remote call that failed and was answered with
	// fallback data (sample objects or the unsaved input).
	ErrFallback = errors.New("remote store unavailable")

	// ErrUploadDisabled is returned by uploaders when remote image upload is
	// turned off or no endpoint is configured.
	ErrUploadDisabled = errors.New("image upload disabled")

	// ErrTitleRequired rejects objects without a title before any network call.
	ErrTitleRequired = errors.New("title is required")

	// ErrMalformedDataURI is returned for embedded images that cannot be decoded.
	ErrMalformedDataURI = errors.New("malformed data uri")
)

// ImageUploadError reports a single image that could not be promoted during
// a batch upload. The save that produced it still went ahead.
type ImageUploadError struct {
	Index int
	Err   error
}

func (e *ImageUploadError) Error() string {
	return fmt.Sprintf("image %d: %v", e.Index+1, e.Err)
}

func (e *ImageUploadError) Unwrap() error { return e.Err }
