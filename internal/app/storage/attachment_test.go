package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chathub/internal/pkg/errs"
)

func TestValidateAttachment(t *testing.T) {
	assert := assert.New(t)

	// Valid combinations pass.
	assert.Nil(ValidateAttachment("photo.jpg", "image/jpeg", 1024))
	assert.Nil(ValidateAttachment("SCAN.PDF", "application/pdf", MaxAttachmentSize))
	assert.Nil(ValidateAttachment("notes.txt", "text/plain", 1))

	// Size limits.
	tooBig := ValidateAttachment("photo.jpg", "image/jpeg", MaxAttachmentSize+1)
	assert.NotNil(tooBig)
	assert.Equal(errs.ErrFileSizeTooLarge, tooBig.Code)

	assert.NotNil(ValidateAttachment("photo.jpg", "image/jpeg", 0))
	assert.NotNil(ValidateAttachment("photo.jpg", "image/jpeg", -1))

	// MIME type must be in the allow list.
	assert.NotNil(ValidateAttachment("script.sh", "application/x-sh", 10))

	// Extension and declared MIME type must agree.
	assert.NotNil(ValidateAttachment("photo.png", "image/jpeg", 10))
	assert.NotNil(ValidateAttachment("photo", "image/jpeg", 10))
}

func TestRoomKeyPrefix(t *testing.T) {
	assert.Equal(t, "rooms/42/", RoomKeyPrefix(42))
}
