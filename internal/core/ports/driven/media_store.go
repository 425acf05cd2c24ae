package driven

import (
	"context"
	"io"
)

// MediaStore uploads binary objects to a media host and returns their public URL.
type MediaStore interface {
	Upload(ctx context.Context, key, contentType string, size int64, body io.Reader) (string, error)
}
