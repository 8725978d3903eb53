package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
)

// ErrUnavailable means the backing stores could not answer a revocation
// check or durably record a revocation. Callers must treat the operation
// as failed and the token as rejected, never as valid.
var ErrUnavailable = errors.New("revocation store unavailable")

const (
	tokenKeyPrefix = "revoked:jti:"
	userKeyPrefix  = "revoked:user:"
)

func tokenKey(jti string) string   { return tokenKeyPrefix + jti }
func userKey(userID string) string { return userKeyPrefix + userID }

// Store is the dual-backed revocation ledger. The redis client may be nil
// (e.g. in the sweeper binary), in which case every check goes straight to
// the durable store.
type Store struct {
	db      *sql.DB
	redis   *redis.Client
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewStore creates the revocation store and ensures its schema exists.
// metrics may be nil.
func NewStore(db *sql.DB, redisClient *redis.Client, logger *observability.Logger, metrics *observability.Metrics) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &Store{
		db:      db,
		redis:   redisClient,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}

	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure revocation schema: %w", err)
	}

	return s, nil
}

func (s *Store) ensureSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS revoked_tokens (
		token_jti TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at ON revoked_tokens(expires_at);
	CREATE INDEX IF NOT EXISTS idx_revoked_tokens_user_id ON revoked_tokens(user_id);

	CREATE TABLE IF NOT EXISTS revoked_users (
		user_id TEXT PRIMARY KEY,
		revoked_at TIMESTAMP WITH TIME ZONE NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_revoked_users_expires_at ON revoked_users(expires_at);
	`

	_, err := s.db.Exec(query)
	return err
}

// Revoke marks a token identifier as burned until its natural expiry.
// Idempotent: revoking the same identifier twice is a no-op, not an
// error. The volatile write is skipped for already-expired tokens
// (nothing to protect); a volatile-store outage degrades to the durable
// fallback and is not an error as long as the durable insert lands.
func (s *Store) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	var cacheErr error
	if ttl := expiresAt.Sub(s.now()); s.redis != nil && ttl > 0 {
		if err := s.redis.Set(ctx, tokenKey(jti), userID, ttl).Err(); err != nil {
			cacheErr = err
			s.countStoreError("redis")
			s.logger.WithError(err).WithField("jti", jti).Warn("volatile revocation write failed, durable store will cover")
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (token_jti, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token_jti) DO NOTHING
	`, jti, userID, expiresAt)
	if err != nil {
		s.countStoreError("postgres")
		if cacheErr != nil {
			return fmt.Errorf("%w: redis: %v, postgres: %v", ErrUnavailable, cacheErr, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Burn is the conditional, exactly-once form of Revoke used for refresh
// rotation. It reports false when the identifier was already burned; the
// durable insert-or-conflict is the arbiter, so two racing callers cannot
// both win.
func (s *Store) Burn(ctx context.Context, jti, userID string, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (token_jti, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (token_jti) DO NOTHING
	`, jti, userID, expiresAt)
	if err != nil {
		s.countStoreError("postgres")
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if rows == 0 {
		return false, nil
	}

	if ttl := expiresAt.Sub(s.now()); s.redis != nil && ttl > 0 {
		if err := s.redis.Set(ctx, tokenKey(jti), userID, ttl).Err(); err != nil {
			s.countStoreError("redis")
			s.logger.WithError(err).WithField("jti", jti).Warn("volatile burn write failed, durable store will cover")
		}
	}

	return true, nil
}

// IsRevoked reports whether a token identifier has been burned. The
// volatile store answers the fast path; a miss or an outage falls back to
// the durable store. If the durable check cannot complete either, the
// result is ErrUnavailable, never an implicit "not revoked".
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.redis != nil {
		n, err := s.redis.Exists(ctx, tokenKey(jti)).Result()
		switch {
		case err != nil:
			s.countStoreError("redis")
			if s.metrics != nil {
				s.metrics.RevocationStoreFallbacks.Inc()
			}
		case n > 0:
			if s.metrics != nil {
				s.metrics.RevocationCacheHits.Inc()
			}
			return true, nil
		default:
			if s.metrics != nil {
				s.metrics.RevocationCacheMisses.Inc()
			}
		}
	}

	var revoked bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM revoked_tokens
			WHERE token_jti = $1 AND expires_at > NOW()
		)
	`, jti).Scan(&revoked)
	if err != nil {
		s.countStoreError("postgres")
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return revoked, nil
}

// RevokeAllForUser records a user-wide revocation marker. Tokens are
// stateless and not enumerable per user, so the marker is a single
// durable record whose validity window must cover the longest outstanding
// token lifetime; tokens with an issued-at before the marker are dead.
// Repeated calls move the marker forward.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string, window time.Duration) error {
	// Second precision: token issued-at has second granularity, and a pair
	// minted immediately after the marker must not fall under it.
	revokedAt := s.now().Truncate(time.Second)
	expiresAt := revokedAt.Add(window)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_users (user_id, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET revoked_at = EXCLUDED.revoked_at, expires_at = EXCLUDED.expires_at
	`, userID, revokedAt, expiresAt)
	if err != nil {
		s.countStoreError("postgres")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if s.redis != nil {
		value := strconv.FormatInt(revokedAt.Unix(), 10)
		if err := s.redis.Set(ctx, userKey(userID), value, window).Err(); err != nil {
			s.countStoreError("redis")
			s.logger.WithError(err).WithField("user_id", userID).Warn("volatile user-revocation write failed, durable store will cover")
		}
	}

	return nil
}

// IsUserRevoked reports whether a token issued at issuedAt falls under a
// user-wide revocation marker. Only tokens strictly predating the marker
// are revoked.
func (s *Store) IsUserRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, userKey(userID)).Result()
		switch {
		case err == redis.Nil:
			if s.metrics != nil {
				s.metrics.RevocationCacheMisses.Inc()
			}
		case err != nil:
			s.countStoreError("redis")
			if s.metrics != nil {
				s.metrics.RevocationStoreFallbacks.Inc()
			}
		default:
			if ts, perr := strconv.ParseInt(val, 10, 64); perr == nil {
				if s.metrics != nil {
					s.metrics.RevocationCacheHits.Inc()
				}
				return issuedAt.Before(time.Unix(ts, 0)), nil
			}
			// Corrupt entry: drop it and consult the durable store
			s.redis.Del(ctx, userKey(userID))
		}
	}

	var revokedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT revoked_at FROM revoked_users
		WHERE user_id = $1 AND expires_at > NOW()
	`, userID).Scan(&revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		s.countStoreError("postgres")
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return issuedAt.Before(revokedAt), nil
}

// Sweep deletes durable records past their expiry. Purely an optimization
// (reads filter on expiry anyway); scheduled externally, typically by the
// sweeper binary. Returns the number of rows deleted.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	var total int64

	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep revoked tokens: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = s.db.ExecContext(ctx, `DELETE FROM revoked_users WHERE expires_at <= NOW()`)
	if err != nil {
		return total, fmt.Errorf("failed to sweep user revocations: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	if s.metrics != nil && total > 0 {
		s.metrics.SweepDeletedTotal.Add(float64(total))
	}

	return total, nil
}

func (s *Store) countStoreError(backend string) {
	if s.metrics != nil {
		s.metrics.RevocationStoreErrors.WithLabelValues(backend).Inc()
	}
}
