// Package revocation implements the dual-backed ledger of burned token
// identifiers.
//
// The volatile store (redis) answers revocation checks in O(1) with
// automatic expiry; the durable store (postgres) survives cache loss, is
// the source of truth for audits, and carries the user-wide revocation
// markers that cannot be expressed as per-jti cache keys.
//
// # Consistency
//
// A Revoke acknowledged by the volatile store is immediately visible to
// every concurrent IsRevoked. The durable store is the fallback, queried
// on a cache miss or a cache outage. When neither backend can answer, the
// check fails with ErrUnavailable: a token is rejected, never allowed,
// while the revocation oracle is down.
//
// # Refresh rotation
//
// Burn is the conditional variant of Revoke used for refresh-token
// rotation: the durable insert conflicts for every caller but the first,
// so two requests racing on the same refresh token cannot both mint a new
// pair.
//
//	store, err := revocation.NewStore(db, redisClient, logger, metrics)
//	won, err := store.Burn(ctx, jti, userID, expiresAt)
//	if !won {
//		// replay: someone already spent this token
//	}
package revocation
