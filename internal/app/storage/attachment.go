package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"chathub/internal/pkg/errs"
)

const (
	// MaxAttachmentSize is the maximum allowed blob size in bytes (10 MB).
	MaxAttachmentSize = 10 << 20

	// MaxAttachmentsPerMessage caps the attachments carried by one message.
	MaxAttachmentsPerMessage = 5
)

// AllowedMIMETypes is the set of permitted attachment MIME types.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"application/pdf": {},
	"text/plain":      {},
	"application/zip": {},
}

// extToMIME maps file extensions to their expected MIME types.
var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".zip":  "application/zip",
}

// RoomKeyPrefix is the object-key prefix all of a room's attachments live
// under. Message sends verify their attachment keys carry the prefix of
// the target room.
func RoomKeyPrefix(roomID int64) string {
	return fmt.Sprintf("rooms/%d/", roomID)
}

// ValidateAttachment checks the declared name, MIME type, and size of an
// attachment before a presigned upload or a message send is accepted.
func ValidateAttachment(fileName, mimeType string, fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrAttachmentInvalid)
	}
	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	lowerMIME := strings.ToLower(mimeType)
	if _, ok := AllowedMIMETypes[lowerMIME]; !ok {
		return errs.NewError(errs.ErrAttachmentInvalid)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	expected, ok := extToMIME[ext]
	if !ok || expected != lowerMIME {
		return errs.NewError(errs.ErrAttachmentInvalid)
	}

	return nil
}
