package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"chathub/internal/app/storage"
	"chathub/internal/app/store"
	"chathub/internal/pkg/auth/jwt"
	"chathub/internal/pkg/errs"
	"chathub/internal/pkg/logx"
	"chathub/internal/pkg/req"
	"chathub/internal/pkg/resp"
	"chathub/internal/realtime"
)

// MaxMessageContentLength caps one message's text content.
const MaxMessageContentLength = 1000

type AttachmentInput struct {
	FileKey  string `json:"file_key" validate:"required,max=512"`
	FileName string `json:"file_name" validate:"required,max=255"`
	MimeType string `json:"mime_type" validate:"required,max=100"`
	FileSize int64  `json:"file_size" validate:"required,gt=0"`
}

type SendMessageInput struct {
	Content     string            `json:"content"`
	Type        string            `json:"type" validate:"required,oneof=text image file"`
	ReplyTo     *int64            `json:"reply_to,omitempty" validate:"omitempty,gt=0"`
	Attachments []AttachmentInput `json:"attachments,omitempty" validate:"dive"`
}

// HandleListMessages returns one history page for the room, oldest-first.
// This is the catch-up endpoint reconnecting clients page through.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		roomID, ok := idParam(r, "roomID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := requireRoomAccess(r, deps, roomID, identity.UserID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		query := r.URL.Query()
		beforeID, _ := strconv.ParseInt(query.Get("before"), 10, 64)
		limit, _ := strconv.Atoi(query.Get("limit"))

		messages, err := deps.Store.ListMessages(r.Context(), roomID, beforeID, limit)
		if err != nil {
			logx.Error(err, "Failed to list messages", "room_id", roomID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": messages})
	}
}

// HandleSendMessage persists a message and fans it out on the room channel.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		roomID, ok := idParam(r, "roomID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var input SendMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Content = strings.TrimSpace(input.Content)
		if input.Content == "" && len(input.Attachments) == 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		if utf8.RuneCountInString(input.Content) > MaxMessageContentLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			return
		}
		if input.Type != "text" && len(input.Attachments) == 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := requireMembership(r, deps, roomID, identity.UserID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := validateAttachments(roomID, input.Attachments); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		params := store.CreateMessageParams{
			RoomID:  roomID,
			UserID:  identity.UserID,
			Content: input.Content,
			Type:    input.Type,
			ReplyTo: input.ReplyTo,
		}
		for _, a := range input.Attachments {
			params.Attachments = append(params.Attachments, store.AttachmentParams{
				FileKey:  a.FileKey,
				FileName: a.FileName,
				MimeType: a.MimeType,
				FileSize: a.FileSize,
			})
		}

		msg, err := deps.Store.CreateMessage(r.Context(), params)
		if err != nil {
			logx.Error(err, "Failed to create message", "room_id", roomID, "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		publishMessageEvent(deps, realtime.EventMessageSent, msg)

		resp.RespondCreated(w, r, msg)
	}
}

type EditMessageInput struct {
	Content string `json:"content" validate:"required"`
}

// HandleEditMessage edits a text message within the edit window and fans
// the updated form out on the room channel.
func HandleEditMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		messageID, ok := idParam(r, "messageID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var input EditMessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		content := strings.TrimSpace(input.Content)
		if content == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		if utf8.RuneCountInString(content) > MaxMessageContentLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageContentTooLong))
			return
		}

		msg, err := deps.Store.UpdateMessage(r.Context(), messageID, identity.UserID, content)
		if err != nil {
			resp.RespondError(w, r, mapMessageError(err))
			return
		}

		publishMessageEvent(deps, realtime.EventMessageUpdated, msg)

		resp.RespondSuccess(w, r, msg)
	}
}

// HandleDeleteMessage soft-deletes a message within the delete window, fans
// the deletion out, and cleans up its attachment blobs.
func HandleDeleteMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		messageID, ok := idParam(r, "messageID")
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		msg, err := deps.Store.DeleteMessage(r.Context(), messageID, identity.UserID)
		if err != nil {
			resp.RespondError(w, r, mapMessageError(err))
			return
		}

		publishMessageEvent(deps, realtime.EventMessageDeleted, msg)

		// Blob cleanup is best-effort; an orphaned object is harmless.
		for _, att := range msg.Attachments {
			if err := deps.Blobs.Delete(r.Context(), att.FileKey); err != nil {
				logx.Warn("Failed to delete attachment blob", "file_key", att.FileKey)
			}
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// validateAttachments applies the blob rules and pins every key to the
// target room's prefix, so a message cannot reference another room's blobs.
func validateAttachments(roomID int64, attachments []AttachmentInput) *errs.CustomError {
	if len(attachments) > storage.MaxAttachmentsPerMessage {
		return errs.NewError(errs.ErrAttachmentCountInvalid, storage.MaxAttachmentsPerMessage)
	}

	prefix := storage.RoomKeyPrefix(roomID)
	for _, a := range attachments {
		if !strings.HasPrefix(a.FileKey, prefix) {
			return errs.NewError(errs.ErrAttachmentInvalid)
		}
		if customErr := storage.ValidateAttachment(a.FileName, a.MimeType, a.FileSize); customErr != nil {
			return customErr
		}
	}

	return nil
}

// mapMessageError is mapStoreError with message-flavored not-found.
func mapMessageError(err error) *errs.CustomError {
	if errors.Is(err, store.ErrNotFound) {
		return errs.NewError(errs.ErrMessageNotFound)
	}
	return mapStoreError(err)
}

func publishMessageEvent(deps *AppDeps, name string, msg realtime.Message) {
	ev, err := realtime.NewEvent(name, realtime.RoomChannel(msg.RoomID), realtime.MessagePayload{
		Message: msg,
		RoomID:  msg.RoomID,
	})
	if err != nil {
		logx.Error(err, "Failed to build message event", "event", name, "message_id", msg.ID)
		return
	}

	deps.Hub.Publish(ev)
}
