package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Wire error codes. Table errors use Postgres SQLSTATE values, auth errors use GoTrue codes.
const (
	CodeUniqueViolation       = "23505"
	CodeForeignKeyViolation   = "23503"
	CodeCheckViolation        = "23514"
	CodeInsufficientPrivilege = "42501"
	CodeUndefinedColumn       = "42703"
	CodeUndefinedTable        = "42P01"
	CodeInvalidText           = "22P02"
	CodeMissingFilter         = "21000"
	CodeBadFilter             = "PGRST100"

	CodeValidationFailed   = "validation_failed"
	CodeWeakPassword       = "weak_password"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeInvalidCredentials = "invalid_credentials"
	CodeRateLimited        = "over_request_rate_limit"
	CodeBadJWT             = "bad_jwt"
	CodeNoAPIKey           = "no_api_key"
	CodeOTPExpired         = "otp_expired"
	CodeUserNotFound       = "user_not_found"
)

var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrNoSession    = errors.New("no active session")
)

// Error is a failed backend call as reported by the server.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (err *Error) Error() string {
	if err.Code != "" {
		return fmt.Sprintf("backend %d (%s): %s", err.Status, err.Code, err.Message)
	}
	return fmt.Sprintf("backend %d: %s", err.Status, err.Message)
}

func (err *Error) Is(target error) bool {
	switch target {
	case ErrConflict:
		if err.Code != "" {
			return err.Code == CodeUniqueViolation
		}
		return err.Status == http.StatusConflict
	case ErrUnauthorized:
		return err.Status == http.StatusUnauthorized || err.Status == http.StatusForbidden
	case ErrNotFound:
		return err.Status == http.StatusNotFound
	}
	return false
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
