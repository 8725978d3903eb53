package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/igmrrf/bugrelay-sub004/pkg/config"
	"github.com/igmrrf/bugrelay-sub004/pkg/observability"
)

// provider is one configured identity provider. Implementations own the
// oauth2 endpoints and the shape of the profile APIs.
type provider interface {
	authCodeURL(state string) string
	exchange(ctx context.Context, code string) (*oauth2.Token, error)
	identity(ctx context.Context, token *oauth2.Token) (*ExternalIdentity, error)
}

// Linker drives the authorization-code flow against the configured
// providers and normalizes their profiles into ExternalIdentity values.
// It issues no local tokens itself; that stays with the auth service.
type Linker struct {
	providers map[Provider]provider
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewLinker builds a Linker from the OAuth configuration. Providers with
// an empty client id are left unconfigured and report ErrUnknownProvider.
// metrics may be nil.
func NewLinker(ctx context.Context, cfg config.OAuthConfig, logger *observability.Logger, metrics *observability.Metrics) (*Linker, error) {
	l := &Linker{
		providers: make(map[Provider]provider),
		logger:    logger,
		metrics:   metrics,
	}

	if cfg.GoogleClientID != "" {
		g, err := newGoogleProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure google provider: %w", err)
		}
		l.providers[ProviderGoogle] = g
	}

	if cfg.GitHubClientID != "" {
		l.providers[ProviderGitHub] = newGitHubProvider(cfg)
	}

	return l, nil
}

// Providers lists the configured providers.
func (l *Linker) Providers() []Provider {
	names := make([]Provider, 0, len(l.providers))
	for name := range l.providers {
		names = append(names, name)
	}
	return names
}

// GenerateState returns a fresh random state parameter for one
// authorization round trip.
func (l *Linker) GenerateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidateState compares the state echoed by the provider against the one
// issued at initiation.
func (l *Linker) ValidateState(expected, received string) error {
	if expected == "" || expected != received {
		return ErrStateMismatch
	}
	return nil
}

// AuthorizationURL returns the provider's authorization endpoint URL with
// the given state bound in.
func (l *Linker) AuthorizationURL(name Provider, state string) (string, error) {
	p, ok := l.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p.authCodeURL(state), nil
}

// ExchangeCode trades an authorization code for a provider token.
func (l *Linker) ExchangeCode(ctx context.Context, name Provider, code string) (*oauth2.Token, error) {
	p, ok := l.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	token, err := p.exchange(ctx, code)
	if err != nil {
		l.countExchange(name, "error")
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	l.countExchange(name, "success")
	return token, nil
}

// FetchIdentity resolves a provider token to a normalized identity.
func (l *Linker) FetchIdentity(ctx context.Context, name Provider, token *oauth2.Token) (*ExternalIdentity, error) {
	p, ok := l.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	ident, err := p.identity(ctx, token)
	if err != nil {
		l.logger.WithError(err).WithField("provider", string(name)).Warn("identity fetch failed")
		return nil, err
	}

	if ident.ProviderAccountID == "" {
		return nil, fmt.Errorf("provider %s returned no account id", name)
	}
	if ident.Email == "" {
		return nil, fmt.Errorf("%w: provider %s", ErrNoVerifiedEmail, name)
	}

	return ident, nil
}

func (l *Linker) countExchange(name Provider, outcome string) {
	if l.metrics != nil {
		l.metrics.ProviderExchanges.WithLabelValues(string(name), outcome).Inc()
	}
}
