package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
)

const (
	// MinPasswordLength is the minimum accepted password length
	MinPasswordLength = 8
	// BcryptCost is the bcrypt work factor, chosen to resist offline
	// brute force at interactive-login latency
	BcryptCost = 12
)

var (
	// ErrPasswordTooShort rejects passwords under the minimum length
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	// ErrPasswordMismatch indicates a wrong password against a valid hash
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrHashMalformed indicates a stored hash that is not a bcrypt hash;
	// distinct from ErrPasswordMismatch so callers can tell data
	// corruption from a wrong guess
	ErrHashMalformed = errors.New("malformed password hash")
)

// PasswordHasher hashes and verifies password credentials with bcrypt.
// Every hash uses a fresh random salt, so two hashes of the same password
// differ.
type PasswordHasher struct {
	cost    int
	metrics *observability.Metrics
}

// NewPasswordHasher creates a hasher with the default work factor.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: BcryptCost}
}

// WithMetrics enables duration observation of the bcrypt operations and
// returns the hasher for chaining. metrics may be nil.
func (p *PasswordHasher) WithMetrics(metrics *observability.Metrics) *PasswordHasher {
	p.metrics = metrics
	return p
}

// Hash hashes a password. Passwords under the minimum length are rejected
// before any work is done.
func (p *PasswordHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	start := time.Now()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	p.observe(start)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashed), nil
}

// Verify compares a password against its stored hash in constant time.
func (p *PasswordHasher) Verify(password, hash string) error {
	start := time.Now()
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	p.observe(start)
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return fmt.Errorf("%w: %v", ErrHashMalformed, err)
}

func (p *PasswordHasher) observe(start time.Time) {
	if p.metrics != nil {
		p.metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())
	}
}

// CheckStrength applies the password policy without hashing, for use in
// registration-form validation.
func (p *PasswordHasher) CheckStrength(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
