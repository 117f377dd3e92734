package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Validation, recoverable by editing the input.
var (
	ErrMissingAuthor = fmt.Errorf("author is required")
	ErrEmptyMessage  = fmt.Errorf("message is empty")
	ErrAuthorTooLong = fmt.Errorf("author is too long")
	ErrBodyTooLong   = fmt.Errorf("message is too long")
	ErrInvalidText   = fmt.Errorf("text is not valid UTF-8")
)

// Media, recoverable by choosing another image.
var (
	ErrUnsupportedMediaType    = fmt.Errorf("unsupported media type")
	ErrMediaTooLarge           = fmt.Errorf("media too large")
	ErrCompressionInsufficient = fmt.Errorf("media cannot be compressed enough")
)

// Moderation.
var ErrRejected = fmt.Errorf("rejected")

// Infrastructure.
var (
	ErrMediaUploadFailed      = fmt.Errorf("media upload failed")
	ErrPersistenceUnavailable = fmt.Errorf("persistence unavailable")
	ErrPermissionDenied       = fmt.Errorf("permission denied")
	ErrNotFound               = fmt.Errorf("not found")
	ErrRateLimited            = fmt.Errorf("too many submissions")
)

// Store classification. Stores wrap their driver errors with one of these
// so that the delivery pipeline can decide whether a retry makes sense.
var (
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrStoreForbidden   = fmt.Errorf("store forbidden")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")

const ReasonDisallowedContent = "disallowed-content"

// RejectedError is returned by the moderator.
type RejectedError struct {
	Reason string
	Terms  []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected: %s", e.Reason)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func NewRejected(terms []string) error {
	return &RejectedError{Reason: ReasonDisallowedContent, Terms: terms}
}

type kind struct {
	err     error
	reason  string
	message string
}

// kinds is ordered: the first match wins, which matters for errors
// wrapping several sentinels (e.g. persistence unavailable wrapping a store error).
var kinds = []kind{
	{ErrMissingAuthor, "MISSING_AUTHOR", "Please enter your name."},
	{ErrEmptyMessage, "EMPTY_MESSAGE", "Write a message or attach an image."},
	{ErrAuthorTooLong, "AUTHOR_TOO_LONG", "Your name is too long."},
	{ErrBodyTooLong, "BODY_TOO_LONG", "Your message is too long."},
	{ErrInvalidText, "INVALID_TEXT", "Your message contains unreadable characters."},
	{ErrUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Only JPG, PNG, GIF and WebP images are allowed."},
	{ErrMediaTooLarge, "MEDIA_TOO_LARGE", "The image is too large."},
	{ErrCompressionInsufficient, "COMPRESSION_INSUFFICIENT", "The image could not be compressed enough, try a smaller one."},
	{ErrRejected, "REJECTED", "Your message contains content that is not allowed."},
	{ErrMediaUploadFailed, "MEDIA_UPLOAD_FAILED", "The image could not be uploaded, please try again."},
	{ErrPermissionDenied, "PERMISSION_DENIED", "You are not allowed to post messages."},
	{ErrPersistenceUnavailable, "PERSISTENCE_UNAVAILABLE", "The server is unavailable, please try again."},
	{ErrRateLimited, "RATE_LIMITED", "Too many messages, slow down a little."},
	{ErrNotFound, "NOT_FOUND", "Not found."},
}

// Kind returns a stable machine readable reason for err, or "UNKNOWN".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.reason
		}
	}
	return "UNKNOWN"
}

// UserMessage returns the text shown to a submitter for err.
func UserMessage(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.message
		}
	}
	return "Unexpected error, please try again."
}

// FromKind is the inverse of Kind, used by clients decoding a status.
func FromKind(reason string) (error, bool) {
	for _, k := range kinds {
		if strings.EqualFold(k.reason, reason) {
			return k.err, true
		}
	}
	return nil, false
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingAuthor) || errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrAuthorTooLong) || errors.Is(err, ErrBodyTooLong) ||
		errors.Is(err, ErrInvalidText)
}

func IsMedia(err error) bool {
	return errors.Is(err, ErrUnsupportedMediaType) || errors.Is(err, ErrMediaTooLarge) ||
		errors.Is(err, ErrCompressionInsufficient)
}
