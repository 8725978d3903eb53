// Package auth implements the authentication and token-lifecycle core of
// the BugRelay platform: issuance and verification of signed session
// tokens, password credentials, and the orchestrating service that ties
// token validation to the revocation ledger.
//
// # Tokens
//
// Sessions are stateless HS256 JWTs. Every token carries a unique
// identifier (jti), the subject user id, email, an admin flag, a kind
// (access or refresh) and an expiry window. Signature verification never
// touches a store; only the revocation check does.
//
//	issuer, err := auth.NewIssuer(secret, 15*time.Minute, 7*24*time.Hour)
//	access, refresh, err := issuer.IssuePair(userID, email, false)
//	claims, err := issuer.Validate(access)
//
// # Passwords
//
// Password credentials use bcrypt with a fixed work factor and a minimum
// length policy:
//
//	hasher := auth.NewPasswordHasher()
//	hash, err := hasher.Hash(password)
//	err = hasher.Verify(password, hash)
//
// # Service
//
// Service is the façade consumed by the HTTP layer. It validates access
// tokens (signature, kind, revocation), rotates refresh tokens exactly
// once, and revokes individual tokens or every session of a user:
//
//	svc := auth.NewService(issuer, hasher, ledger, logger, metrics)
//	claims, err := svc.ValidateAccess(ctx, token)
//	access, refresh, err := svc.Refresh(ctx, oldRefresh)
//
// All expected failures are typed sentinel errors (ErrExpiredToken,
// ErrInvalidToken, ErrWrongKind, ErrTokenRevoked, password errors);
// callers distinguish them with errors.Is. Revocation-store outages
// surface as revocation.ErrUnavailable, never as a silent allow.
package auth
