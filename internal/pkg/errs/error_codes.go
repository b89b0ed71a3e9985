/*
Package errs provides custom error types and application-level error code constants.

These codes identify specific business or system errors both inside the
server and on the wire to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates the request rate exceeded the configured limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Room and Message Business Logic Errors
const (
	// ErrRoomNotFound indicates the referenced room does not exist.
	ErrRoomNotFound = 2101

	// ErrRoomTypeInvalid indicates an unsupported room type on creation.
	ErrRoomTypeInvalid = 2102

	// ErrNotRoomMember indicates the acting user is not a member of the room.
	ErrNotRoomMember = 2103

	// ErrAlreadyMember indicates a join attempt by an existing member.
	ErrAlreadyMember = 2104

	// ErrCreatorCannotLeave indicates the room creator attempted to leave their own room.
	ErrCreatorCannotLeave = 2105

	// ErrRoomAccessDenied indicates the user may not view or join the room.
	ErrRoomAccessDenied = 2106

	// ErrMessageNotFound indicates the referenced message does not exist.
	ErrMessageNotFound = 2201

	// ErrMessageContentTooLong indicates message content exceeded the length limit.
	ErrMessageContentTooLong = 2202

	// ErrNotMessageOwner indicates an edit/delete attempt by a non-author.
	ErrNotMessageOwner = 2203

	// ErrEditWindowExpired indicates the message is past its editable window.
	ErrEditWindowExpired = 2204

	// ErrDeleteWindowExpired indicates the message is past its deletable window.
	ErrDeleteWindowExpired = 2205

	// ErrAttachmentInvalid indicates a rejected attachment name, key, or MIME type.
	ErrAttachmentInvalid = 2301

	// ErrFileSizeTooLarge indicates the attachment exceeds the size limit.
	ErrFileSizeTooLarge = 2302

	// ErrAttachmentCountInvalid indicates too many (or zero) attachments on a message.
	ErrAttachmentCountInvalid = 2303
)

// 3xxx: Identity and Admission Errors
const (
	// ErrUnauthorized indicates a missing, invalid, or expired bearer credential.
	ErrUnauthorized = 3001

	// ErrAdmissionDenied indicates a channel subscription was refused.
	ErrAdmissionDenied = 3002

	// ErrUserNotFound indicates the token identity has no backing user row.
	ErrUserNotFound = 3003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates a blob-store operation failed.
	ErrFileStorageFailed = 5001
)
