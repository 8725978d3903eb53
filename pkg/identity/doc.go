// Package identity links third-party provider accounts (Google, GitHub)
// to local users through the OAuth 2.0 authorization-code flow.
//
// The Linker owns the per-provider oauth2 configuration, the CSRF state
// round trip, the code-for-token exchange, and the normalization of each
// provider's profile shape into a single ExternalIdentity. It never mints
// local tokens; callers hand the ExternalIdentity to the user store and
// the auth service.
//
// Provider accounts are keyed by the provider's stable account id, not by
// email. GitHub identities without a profile email fall back to the
// emails API: the primary verified address wins, then any verified
// address, then the flow fails with ErrNoVerifiedEmail. Google identities
// can optionally be taken from a verified id_token instead of the
// userinfo endpoint.
package identity
