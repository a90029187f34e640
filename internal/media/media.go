// Package media turns uploaded image bytes into a hosted URL. Two
// uploaders exist: an HTTP client for unsigned-upload image hosts and a
// local store that re-encodes to WebP on disk.
package media

import (
	"context"
)

// Uploader accepts raw image bytes and returns the URL a post or avatar
// can reference.
type Uploader interface {
	Upload(ctx context.Context, filename string, content []byte) (string, error)
}

// MaxUploadSizeBytes bounds a single upload.
const MaxUploadSizeBytes = 10 * 1024 * 1024
