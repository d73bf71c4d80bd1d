package gallery

import "errors"

var (
	ErrGalleryNotFound = errors.New("gallery not found")
	ErrAccessDenied    = errors.New("access denied")
	ErrInvalidOrder    = errors.New("proposed order does not match gallery contents")
)
