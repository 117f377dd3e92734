package auth

import (
	"context"
	"strings"

	"public-feed/proto/feedpb"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Methods reserved to operators, everything else is public.
var adminMethods = map[string]struct{}{
	feedpb.SweepMethod:  {},
	feedpb.DeleteMethod: {},
}

type contextKey string

const SubjectKey contextKey = "subject"

// AdminInterceptor requires a valid admin token on admin methods.
// With an empty secret admin methods are refused altogether.
func AdminInterceptor(secret []byte) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !isAdminMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		if len(secret) == 0 {
			return nil, status.Error(codes.PermissionDenied, "admin operations are disabled")
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "metadata is missing")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
		}
		claims, err := ValidateToken(secret, strings.TrimPrefix(values[0], "Bearer "))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		if !claims.HasRole(AdminRole) {
			return nil, status.Error(codes.PermissionDenied, "admin role required")
		}
		return handler(context.WithValue(ctx, SubjectKey, claims.Subject), req)
	}
}

func isAdminMethod(method string) bool {
	_, ok := adminMethods[method]
	return ok
}
