package identity

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the service reports.
type Kind int

const (
	KindServerError Kind = iota
	KindValidation
	KindDuplicateEmail
	KindInvalidCredentials
	KindUnverifiedAccount
	KindInvalidOrExpiredToken
	KindNotFound
	KindAlreadyVerified
	KindUnauthenticated
	KindDispatchFailure
	KindResetNotConfirmed
)

var kindNames = map[Kind]string{
	KindServerError:           "server_error",
	KindValidation:            "validation",
	KindDuplicateEmail:        "duplicate_email",
	KindInvalidCredentials:    "invalid_credentials",
	KindUnverifiedAccount:     "unverified_account",
	KindInvalidOrExpiredToken: "invalid_or_expired_token",
	KindNotFound:              "not_found",
	KindAlreadyVerified:       "already_verified",
	KindUnauthenticated:       "unauthenticated",
	KindDispatchFailure:       "dispatch_failure",
	KindResetNotConfirmed:     "reset_not_confirmed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every Service operation. Message is safe to show to
// the caller; Err carries internal detail for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrValidation)
// holds for every validation failure whatever its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation            = &Error{Kind: KindValidation, Message: "Invalid request"}
	ErrDuplicateEmail        = &Error{Kind: KindDuplicateEmail, Message: "User with this email already exists"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
	ErrUnverifiedAccount     = &Error{Kind: KindUnverifiedAccount, Message: "Please verify your email first. We sent you a verification email."}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Message: "Invalid or expired token"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrAlreadyVerified       = &Error{Kind: KindAlreadyVerified, Message: "User is already verified"}
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated, Message: "Not authenticated"}
	ErrDispatchFailure       = &Error{Kind: KindDispatchFailure, Message: "Failed to send email"}
	ErrResetNotConfirmed     = &Error{Kind: KindResetNotConfirmed, Message: "OTP not verified or expired"}
	ErrServer                = &Error{Kind: KindServerError, Message: "Internal server error"}
)

func validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func withCause(base *Error, err error) error {
	return &Error{Kind: base.Kind, Message: base.Message, Err: err}
}

func internal(op string, err error) error {
	return &Error{Kind: KindServerError, Message: ErrServer.Message, Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf reports the kind of err. Errors not produced by this package are
// server errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServerError
}

// PublicMessage returns the caller-facing message for err without any
// internal detail.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrServer.Message
}
