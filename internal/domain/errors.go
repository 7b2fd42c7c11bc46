package domain

import "errors"

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrRateLimited       = errors.New("rate limited")
	ErrContentPolicy     = errors.New("content policy rejection")
	ErrNetwork           = errors.New("network error")
	ErrUnknownService    = errors.New("unknown service error")
	ErrModelNotFound     = errors.New("model not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrActiveRequest     = errors.New("active request exists")
)

// ValidationError reports rejected user input before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
