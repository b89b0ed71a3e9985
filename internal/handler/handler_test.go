package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"chathub/internal/app/store"
	"chathub/internal/pkg/errs"
)

func TestRoomIDFromKey(t *testing.T) {
	assert := assert.New(t)

	roomID, ok := roomIDFromKey("rooms/42/abc-def.jpg")
	assert.True(ok)
	assert.Equal(int64(42), roomID)

	for _, key := range []string{
		"",
		"rooms/42",
		"rooms/42/",
		"rooms/abc/file.jpg",
		"rooms/-1/file.jpg",
		"users/42/file.jpg",
	} {
		_, ok := roomIDFromKey(key)
		assert.False(ok, "expected %q to be rejected", key)
	}
}

func TestRoomSlug(t *testing.T) {
	assert := assert.New(t)

	slug := roomSlug("General Discussion!")
	assert.True(strings.HasPrefix(slug, "general-discussion-"))
	assert.Len(slug, len("general-discussion-")+8)

	// Names with no usable characters still produce a slug.
	assert.Len(roomSlug("!!!"), 8)

	// Distinct calls produce distinct slugs.
	assert.NotEqual(roomSlug("team"), roomSlug("team"))
}

func TestMapStoreError(t *testing.T) {
	assert := assert.New(t)

	cases := map[error]int{
		store.ErrNotFound:            errs.ErrRoomNotFound,
		store.ErrAlreadyMember:       errs.ErrAlreadyMember,
		store.ErrNotMember:           errs.ErrNotRoomMember,
		store.ErrCreatorCannotLeave:  errs.ErrCreatorCannotLeave,
		store.ErrNotOwner:            errs.ErrNotMessageOwner,
		store.ErrEditWindowExpired:   errs.ErrEditWindowExpired,
		store.ErrDeleteWindowExpired: errs.ErrDeleteWindowExpired,
	}

	for sentinel, code := range cases {
		assert.Equal(code, mapStoreError(sentinel).Code)
	}

	// Message endpoints flavor not-found differently.
	assert.Equal(errs.ErrMessageNotFound, mapMessageError(store.ErrNotFound).Code)
	assert.Equal(errs.ErrNotMessageOwner, mapMessageError(store.ErrNotOwner).Code)
}

func TestValidateAttachmentsPinsRoomPrefix(t *testing.T) {
	assert := assert.New(t)

	own := AttachmentInput{FileKey: "rooms/42/a.jpg", FileName: "a.jpg", MimeType: "image/jpeg", FileSize: 10}
	foreign := AttachmentInput{FileKey: "rooms/7/a.jpg", FileName: "a.jpg", MimeType: "image/jpeg", FileSize: 10}

	assert.Nil(validateAttachments(42, []AttachmentInput{own}))

	customErr := validateAttachments(42, []AttachmentInput{foreign})
	assert.NotNil(customErr)
	assert.Equal(errs.ErrAttachmentInvalid, customErr.Code)
}
