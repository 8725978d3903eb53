package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names a supported identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

var (
	// ErrUnknownProvider means the requested provider is not configured.
	ErrUnknownProvider = errors.New("unknown identity provider")

	// ErrNoVerifiedEmail means the provider account has no verified email
	// address, so it cannot be linked to a local account.
	ErrNoVerifiedEmail = errors.New("no verified email on provider account")

	// ErrStateMismatch means the callback state does not match the one
	// issued at initiation.
	ErrStateMismatch = errors.New("oauth state mismatch")
)

// ExternalIdentity is the normalized result of a completed provider flow.
// ProviderAccountID is the provider's stable account identifier, never the
// email (emails change; account ids do not).
type ExternalIdentity struct {
	Provider          Provider `json:"provider"`
	ProviderAccountID string   `json:"provider_account_id"`
	Email             string   `json:"email"`
	Name              string   `json:"name"`
	AvatarURL         string   `json:"avatar_url"`
	EmailVerified     bool     `json:"email_verified"`
}

// ParseProvider maps a path or query segment to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(s) {
	case "google":
		return ProviderGoogle, nil
	case "github":
		return ProviderGitHub, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, s)
	}
}
