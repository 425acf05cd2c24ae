package domain

import (
	"io"
	"strings"
)

// MaxAvatarSize is the largest accepted avatar upload in bytes
const MaxAvatarSize = 5 << 20

// AvatarUpload is an image supplied by the principal
type AvatarUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate checks the upload is a non-empty image within the size limit
func (u *AvatarUpload) Validate() error {
	if u.Body == nil || u.Size <= 0 || u.Size > MaxAvatarSize {
		return ErrInvalidInput
	}
	if !strings.HasPrefix(u.ContentType, "image/") {
		return ErrInvalidInput
	}
	return nil
}
