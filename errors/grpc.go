package errors

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ErrorDomain = "public-feed"

// MapToGRPCError converts a feed error into a status carrying its kind
// as an ErrorInfo reason, so clients can restore the sentinel.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && Kind(err) == "UNKNOWN" {
		return err
	}
	code := codeOf(err)
	st := status.New(code, UserMessage(err))
	withDetails, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: Kind(err),
		Domain: ErrorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

func codeOf(err error) codes.Code {
	switch {
	case IsValidation(err), IsMedia(err), errors.Is(err, ErrRejected):
		return codes.InvalidArgument
	case errors.Is(err, ErrPermissionDenied):
		return codes.PermissionDenied
	case errors.Is(err, ErrMediaUploadFailed), errors.Is(err, ErrPersistenceUnavailable):
		return codes.Unavailable
	case errors.Is(err, ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// FromGRPCError restores the sentinel carried by a status built with
// MapToGRPCError. Other errors are returned untouched.
func FromGRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		if sentinel, found := FromKind(info.GetReason()); found {
			return &remoteError{sentinel: sentinel, message: st.Message()}
		}
	}
	return err
}

type remoteError struct {
	sentinel error
	message  string
}

func (e *remoteError) Error() string { return e.message }

func (e *remoteError) Unwrap() error { return e.sentinel }
