// Package auth validates API credentials before any outbound call is made.
package auth

import (
	"context"
	"regexp"
	"strings"

	"aistudio/internal/domain"
)

// KeyPrefix is the expected credential prefix convention.
const KeyPrefix = "sk-"

// Keys are the prefix followed by at least 20 URL-safe characters. This is a
// format check only; the credential is proven against the service by the
// first real API call.
var keyPattern = regexp.MustCompile(`^sk-[A-Za-z0-9_-]{20,}$`)

// Validate checks the credential format locally. It never performs a network
// round-trip.
func Validate(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return &domain.ValidationError{Field: "api_key", Reason: "credential cannot be empty"}
	}
	if !strings.HasPrefix(credential, KeyPrefix) {
		return domain.ErrInvalidCredential
	}
	if !keyPattern.MatchString(credential) {
		return domain.ErrInvalidCredential
	}
	return nil
}

// ModelLister is the slice of the API client needed for remote verification.
type ModelLister interface {
	ListModels(ctx context.Context, credential string) ([]string, error)
}

// Verify confirms the credential against the hosted service by listing
// models. It validates the format first so malformed credentials are rejected
// without a network call.
func Verify(ctx context.Context, client ModelLister, credential string) error {
	if err := Validate(credential); err != nil {
		return err
	}
	if _, err := client.ListModels(ctx, credential); err != nil {
		return err
	}
	return nil
}

// Redact returns a loggable form of the credential: the first seven
// characters followed by an ellipsis.
func Redact(credential string) string {
	if len(credential) <= 7 {
		return "short_key"
	}
	return credential[:7] + "..."
}
