package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// Messaging
	ErrInvalidMessage   = fmt.Errorf("invalid message")
	ErrNotAMember       = fmt.Errorf("not a member of this room")
	ErrStorage          = fmt.Errorf("storage failure")
	ErrDeliveryFailure  = fmt.Errorf("delivery failure")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrRateLimited      = fmt.Errorf("rate limit exceeded")

	// Membership
	ErrAlreadyMember = fmt.Errorf("already a member of this room")
	ErrNotFound      = fmt.Errorf("not found")
	ErrInvalidRoom   = fmt.Errorf("invalid room")

	// Account
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// Reason codes carried by the messageError push event.
const (
	ReasonInvalidMessage = "INVALID_MESSAGE"
	ReasonNotAMember     = "NOT_A_MEMBER"
	ReasonStorage        = "STORAGE_ERROR"
	ReasonAlreadyMember  = "ALREADY_MEMBER"
	ReasonNotFound       = "NOT_FOUND"
	ReasonUnauthorized   = "UNAUTHORIZED"
	ReasonInvalidAccount = "INVALID_ACCOUNT"
	ReasonRateLimited    = "RATE_LIMITED"
	ReasonInternal       = "INTERNAL"
)

// ReasonCode returns the stable code sent to clients for a failed operation.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrInvalidRoom):
		return ReasonInvalidMessage
	case errors.Is(err, ErrNotAMember):
		return ReasonNotAMember
	case errors.Is(err, ErrStorage):
		return ReasonStorage
	case errors.Is(err, ErrAlreadyMember):
		return ReasonAlreadyMember
	case errors.Is(err, ErrNotFound), errors.Is(err, badger.ErrKeyNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return ReasonUnauthorized
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrUserAlreadyExists):
		return ReasonInvalidAccount
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	default:
		return ReasonInternal
	}
}

// MapToGRPCError converts a domain error into a gRPC status error.
// Errors that already carry a status are returned untouched.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrInvalidRoom), errors.Is(err, ErrInvalidPassword):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotAMember):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, ErrStorage):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrUserAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, ErrRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// MapToHTTPStatus is the REST counterpart of MapToGRPCError.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrInvalidRoom), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Is mirrors the standard library so callers importing this package keep errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
