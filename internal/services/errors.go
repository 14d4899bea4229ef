package services

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindBackend    Kind = "backend"
	KindNotFound   Kind = "not_found"
)

// Error is a user-facing failure. Key names the message shown to the user; Err keeps the cause for logs.
type Error struct {
	Kind    Kind
	Key     string
	Details []string
	Err     error
}

func (err *Error) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%s: %s: %v", err.Kind, err.Key, err.Err)
	}
	return fmt.Sprintf("%s: %s", err.Kind, err.Key)
}

func (err *Error) Unwrap() error {
	return err.Err
}

func (err *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return err.Kind == other.Kind && err.Key == other.Key
}

func newError(kind Kind, key string) *Error {
	return &Error{Kind: kind, Key: key}
}

func wrapError(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Key: sentinel.Key, Err: cause}
}

func KindOf(err error) Kind {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind
	}
	return KindBackend
}

func KeyOf(err error) string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Key
	}
	return ""
}

var (
	ErrSessionRequired = newError(KindAuth, "auth.session_required")

	ErrEmailInvalid        = newError(KindValidation, "auth.email_invalid")
	ErrFullNameRequired    = newError(KindValidation, "auth.full_name_required")
	ErrWeakPassword        = newError(KindValidation, "auth.password_weak")
	ErrCredentialsRequired = newError(KindValidation, "auth.credentials_required")
	ErrEmailTaken          = newError(KindValidation, "auth.email_taken")
	ErrInvalidCredentials  = newError(KindAuth, "auth.invalid_credentials")
	ErrSignUpFailed        = newError(KindBackend, "auth.sign_up_failed")
	ErrSignInFailed        = newError(KindBackend, "auth.sign_in_failed")
	ErrSignOutFailed       = newError(KindAuth, "auth.sign_out_failed")
	ErrResetTokenInvalid   = newError(KindAuth, "auth.reset_token_invalid")
	ErrPasswordResetFailed = newError(KindBackend, "auth.password_reset_failed")

	ErrCoupleNameRequired = newError(KindValidation, "couple.name_required")
	ErrJoinCodeRequired   = newError(KindValidation, "couple.code_required")
	ErrInvalidJoinCode    = newError(KindNotFound, "couple.code_invalid")
	ErrAlreadyMember      = newError(KindValidation, "couple.already_member")
	ErrCreateCoupleFailed = newError(KindBackend, "couple.create_failed")
	ErrJoinCoupleFailed   = newError(KindBackend, "couple.join_failed")
	ErrNoCouple           = newError(KindNotFound, "couple.none")
	ErrCoupleLookupFailed = newError(KindBackend, "couple.lookup_failed")

	ErrUnknownMood     = newError(KindValidation, "mood.unknown")
	ErrMoodNoteTooLong = newError(KindValidation, "mood.note_too_long")
	ErrMoodSaveFailed  = newError(KindBackend, "mood.save_failed")
	ErrMoodLoadFailed  = newError(KindBackend, "mood.load_failed")
)

var errJoinCodeExhausted = errors.New("join code attempts exhausted")
