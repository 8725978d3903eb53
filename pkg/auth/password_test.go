package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
)

// Tests use the minimum bcrypt cost to keep the suite fast; Hash/Verify
// behavior is identical at any cost.
func newTestHasher() *PasswordHasher {
	return &PasswordHasher{cost: bcrypt.MinCost}
}

func TestHash_RoundTrip(t *testing.T) {
	hasher := newTestHasher()

	hash, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := hasher.Verify("correct horse battery staple", hash); err != nil {
		t.Errorf("Verify() with matching password error = %v", err)
	}
}

func TestHash_TooShort(t *testing.T) {
	hasher := newTestHasher()

	_, err := hasher.Hash("short")
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("Hash() error = %v, want ErrPasswordTooShort", err)
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	hasher := newTestHasher()

	h1, err := hasher.Hash("same-password-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := hasher.Hash("same-password-1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 == h2 {
		t.Error("Two hashes of the same password should differ")
	}
}

func TestVerify_Mismatch(t *testing.T) {
	hasher := newTestHasher()

	hash, err := hasher.Hash("the-right-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	err = hasher.Verify("the-wrong-password", hash)
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() error = %v, want ErrPasswordMismatch", err)
	}
	if errors.Is(err, ErrHashMalformed) {
		t.Error("A wrong guess must never be reported as a malformed hash")
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	hasher := newTestHasher()

	err := hasher.Verify("whatever-password", "not-a-bcrypt-hash")
	if !errors.Is(err, ErrHashMalformed) {
		t.Errorf("Verify() error = %v, want ErrHashMalformed", err)
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("A corrupt hash must never be reported as a wrong password")
	}
}

func TestCheckStrength(t *testing.T) {
	hasher := newTestHasher()

	if err := hasher.CheckStrength("long enough password"); err != nil {
		t.Errorf("CheckStrength() error = %v, want nil", err)
	}

	err := hasher.CheckStrength(strings.Repeat("x", MinPasswordLength-1))
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("CheckStrength() error = %v, want ErrPasswordTooShort", err)
	}

	if err := hasher.CheckStrength(strings.Repeat("x", MinPasswordLength)); err != nil {
		t.Errorf("CheckStrength() at exactly the minimum error = %v, want nil", err)
	}
}

func TestNewPasswordHasher_Cost(t *testing.T) {
	hasher := NewPasswordHasher()
	if hasher.cost != BcryptCost {
		t.Errorf("cost = %d, want %d", hasher.cost, BcryptCost)
	}
}

func TestHasher_ObservesDuration(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	hasher := newTestHasher().WithMetrics(metrics)

	hash, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if err := hasher.Verify("correct horse battery staple", hash); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if got := hashSampleCount(t, registry); got != 2 {
		t.Errorf("hash duration sample count = %d, want 2 (one per bcrypt operation)", got)
	}
}

func hashSampleCount(t *testing.T, registry *prometheus.Registry) uint64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "bugrelay_password_hash_duration_seconds" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("password hash duration histogram was not collected")
	return 0
}
