package handler

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"chathub/internal/app/storage"
	"chathub/internal/pkg/auth/jwt"
	"chathub/internal/pkg/errs"
	"chathub/internal/pkg/logx"
	"chathub/internal/pkg/req"
	"chathub/internal/pkg/resp"
)

type PresignUploadInput struct {
	FileName string `json:"file_name" validate:"required,max=255"`
	MimeType string `json:"mime_type" validate:"required,max=100"`
	FileSize int64  `json:"file_size" validate:"required,gt=0"`
}

// HandlePresignUpload validates the declared blob and hands out a presigned
// PUT URL under the room's key prefix. Members only.
func HandlePresignUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		roomID, ok := idParam(r, "roomID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := requireMembership(r, deps, roomID, identity.UserID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := storage.ValidateAttachment(input.FileName, input.MimeType, input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key := storage.RoomKeyPrefix(roomID) + uuid.NewString() + strings.ToLower(filepath.Ext(input.FileName))

		url, err := deps.Blobs.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "Failed to presign upload", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"file_key":   key,
			"upload_url": url,
			"expires_in": int(storage.PresignedURLDuration.Seconds()),
		})
	}
}

// HandlePresignDownload hands out a presigned GET URL for an attachment
// blob. The key's room prefix decides who may fetch it.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		key := r.URL.Query().Get("key")
		roomID, ok := roomIDFromKey(key)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := requireRoomAccess(r, deps, roomID, identity.UserID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		url, err := deps.Blobs.PresignDownload(r.Context(), key, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "Failed to presign download", "file_key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"download_url": url,
			"expires_in":   int(storage.PresignedURLDuration.Seconds()),
		})
	}
}

// roomIDFromKey extracts the room from a "rooms/{id}/..." object key.
func roomIDFromKey(key string) (int64, bool) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] != "rooms" || parts[2] == "" {
		return 0, false
	}

	roomID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || roomID <= 0 {
		return 0, false
	}
	return roomID, true
}
