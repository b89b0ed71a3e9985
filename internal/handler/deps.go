package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chathub/internal/app/storage"
	"chathub/internal/app/store"
	"chathub/internal/configs"
	"chathub/internal/pkg/errs"
	"chathub/internal/realtime"
)

// AppDeps carries the shared collaborators every handler needs.
type AppDeps struct {
	Hub        *realtime.Hub
	Authorizer *realtime.ChannelAuthorizer
	Store      *store.Store
	Blobs      storage.BlobService
	Config     *configs.AppConfig
}

// idParam parses a positive int64 URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// mapStoreError translates store sentinel errors to wire error codes.
func mapStoreError(err error) *errs.CustomError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errs.NewError(errs.ErrRoomNotFound)
	case errors.Is(err, store.ErrAlreadyMember):
		return errs.NewError(errs.ErrAlreadyMember)
	case errors.Is(err, store.ErrNotMember):
		return errs.NewError(errs.ErrNotRoomMember)
	case errors.Is(err, store.ErrCreatorCannotLeave):
		return errs.NewError(errs.ErrCreatorCannotLeave)
	case errors.Is(err, store.ErrNotOwner):
		return errs.NewError(errs.ErrNotMessageOwner)
	case errors.Is(err, store.ErrEditWindowExpired):
		return errs.NewError(errs.ErrEditWindowExpired)
	case errors.Is(err, store.ErrDeleteWindowExpired):
		return errs.NewError(errs.ErrDeleteWindowExpired)
	default:
		return errs.NewError(errs.ErrUnknown)
	}
}
