package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUserMessage_DistinctPerKind(t *testing.T) {
	req := require.New(t)
	seen := make(map[string]string)
	for _, k := range kinds {
		msg := UserMessage(k.err)
		other, dup := seen[msg]
		req.False(dup, "%s and %s share the same message", k.reason, other)
		seen[msg] = k.reason
	}
}

func TestKind_WrappedErrors(t *testing.T) {
	req := require.New(t)
	err := fmt.Errorf("attempt 3: %w", fmt.Errorf("%w: %w", ErrPersistenceUnavailable, ErrStoreUnavailable))
	req.Equal("PERSISTENCE_UNAVAILABLE", Kind(err))
	req.Equal("REJECTED", Kind(NewRejected([]string{"spam"})))
	req.Equal("UNKNOWN", Kind(errors.New("boom")))
}

func TestRejectedError_Is(t *testing.T) {
	req := require.New(t)
	err := fmt.Errorf("moderation: %w", NewRejected([]string{"bot"}))
	req.ErrorIs(err, ErrRejected)

	var rejected *RejectedError
	req.True(errors.As(err, &rejected))
	req.Equal(ReasonDisallowedContent, rejected.Reason)
	req.Equal([]string{"bot"}, rejected.Terms)
}

func TestMapToGRPCError_RoundTrip(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{ErrMissingAuthor, codes.InvalidArgument},
		{ErrInvalidText, codes.InvalidArgument},
		{ErrCompressionInsufficient, codes.InvalidArgument},
		{NewRejected(nil), codes.InvalidArgument},
		{ErrPermissionDenied, codes.PermissionDenied},
		{fmt.Errorf("%w: timeout", ErrPersistenceUnavailable), codes.Unavailable},
		{ErrMediaUploadFailed, codes.Unavailable},
		{ErrRateLimited, codes.ResourceExhausted},
		{ErrNotFound, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(Kind(tt.err), func(t *testing.T) {
			req := require.New(t)
			grpcErr := MapToGRPCError(tt.err)
			req.Equal(tt.code, status.Code(grpcErr))

			restored := FromGRPCError(grpcErr)
			req.Equal(Kind(tt.err), Kind(restored))
			req.Equal(UserMessage(tt.err), restored.Error())
		})
	}
}

func TestMapToGRPCError_Nil(t *testing.T) {
	require.NoError(t, MapToGRPCError(nil))
	require.NoError(t, FromGRPCError(nil))
}
