/*
Package errs provides custom error types and application-level error code constants.

This file maps every error code to its CustomError template, standardizing
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Message Business Logic Errors
	ErrRoomNotFound:           {Code: ErrRoomNotFound, Message: "Chat room not found.", Status: http.StatusNotFound},
	ErrRoomTypeInvalid:        {Code: ErrRoomTypeInvalid, Message: "Invalid room type.", Status: http.StatusBadRequest},
	ErrNotRoomMember:          {Code: ErrNotRoomMember, Message: "You are not a member of this room.", Status: http.StatusForbidden},
	ErrAlreadyMember:          {Code: ErrAlreadyMember, Message: "You are already a member of this room.", Status: http.StatusBadRequest},
	ErrCreatorCannotLeave:     {Code: ErrCreatorCannotLeave, Message: "The room creator cannot leave the room.", Status: http.StatusBadRequest},
	ErrRoomAccessDenied:       {Code: ErrRoomAccessDenied, Message: "You do not have access to this room.", Status: http.StatusForbidden},
	ErrMessageNotFound:        {Code: ErrMessageNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrMessageContentTooLong:  {Code: ErrMessageContentTooLong, Message: "Message is too long.", Status: http.StatusBadRequest},
	ErrNotMessageOwner:        {Code: ErrNotMessageOwner, Message: "You can only modify your own messages.", Status: http.StatusForbidden},
	ErrEditWindowExpired:      {Code: ErrEditWindowExpired, Message: "Message is no longer editable.", Status: http.StatusBadRequest},
	ErrDeleteWindowExpired:    {Code: ErrDeleteWindowExpired, Message: "Message is no longer deletable.", Status: http.StatusBadRequest},
	ErrAttachmentInvalid:      {Code: ErrAttachmentInvalid, Message: "Invalid attachment.", Status: http.StatusBadRequest},
	ErrFileSizeTooLarge:       {Code: ErrFileSizeTooLarge, Message: "File is too large.", Status: http.StatusBadRequest},
	ErrAttachmentCountInvalid: {Code: ErrAttachmentCountInvalid, Message: "A message can carry at most %d attachments.", Status: http.StatusBadRequest},

	// 3xxx: Identity and Admission Errors
	ErrUnauthorized:    {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrAdmissionDenied: {Code: ErrAdmissionDenied, Message: "You cannot subscribe to this channel.", Status: http.StatusForbidden},
	ErrUserNotFound:    {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
}
