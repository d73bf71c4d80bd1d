package media

import "errors"

var (
	ErrImageNotFound        = errors.New("image not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrInvalidSizeToken     = errors.New("unrecognized size token")
	ErrNoFiles              = errors.New("no files provided")
	ErrTooManyFiles         = errors.New("too many files in one request")
	ErrAllFilesFailed       = errors.New("no file could be processed")
	ErrIncompleteThumbnails = errors.New("thumbnail map is missing required sizes")
	ErrStorageUnconfigured  = errors.New("storage backend is not configured")
)
