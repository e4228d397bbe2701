package domain

import "errors"

// Error kinds reported to clients. Everything else is an internal failure.
var (
	ErrValidation    = errors.New("validation")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("not authorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrStorage       = errors.New("storage failure")
	ErrTransportGone = errors.New("transport gone")
	ErrCodeTaken     = errors.New("room code taken")
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindAuthorization ErrorKind = "authorization"
	KindRateLimited   ErrorKind = "rate_limited"
	KindInternal      ErrorKind = "internal"
)

// KindOf classifies err for the error event sent back to the initiator.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindAuthorization
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}

// PublicMessage is the text a client may see for err. Internal failures
// are never described.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error, please try again"
	}
	return err.Error()
}
