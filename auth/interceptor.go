package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"

	bearerPrefix = "Bearer "
)

// WithIdentity injects the user identity into ctx for downstream layers.
func WithIdentity(ctx context.Context, userID string, roles []string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, RolesKey, roles)
}

// UserIDFromContext returns the authenticated user, or false when the call is anonymous.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// Interceptors check the JWT of incoming gRPC calls.
// Methods listed as public (login, register) skip the check.
type Interceptors struct {
	authenticator *Authenticator
	publicMethods map[string]struct{}
}

func NewInterceptors(authenticator *Authenticator, publicMethods ...string) *Interceptors {
	public := make(map[string]struct{}, len(publicMethods))
	for _, m := range publicMethods {
		public[m] = struct{}{}
	}
	return &Interceptors{authenticator: authenticator, publicMethods: public}
}

func (i *Interceptors) Unary(ctx context.Context, req any,
	info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if i.isPublicMethod(info.FullMethod) {
		return handler(ctx, req)
	}
	newCtx, err := i.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return handler(newCtx, req)
}

func (i *Interceptors) Stream(srv any, ss grpc.ServerStream,
	info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if i.isPublicMethod(info.FullMethod) {
		return handler(srv, ss)
	}
	newCtx, err := i.authenticate(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &identityStream{ServerStream: ss, ctx: newCtx})
}

func (i *Interceptors) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "metadata is missing")
	}

	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
	}

	// Expecting the standard "Bearer <token>" format
	claims, err := i.authenticator.ValidateToken(strings.TrimPrefix(values[0], bearerPrefix))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return WithIdentity(ctx, claims.UserID, claims.Roles), nil
}

func (i *Interceptors) isPublicMethod(method string) bool {
	_, ok := i.publicMethods[method]
	return ok
}

// identityStream overrides the context of a server stream.
type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context {
	return s.ctx
}
