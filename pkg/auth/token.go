// Package auth provides token verification and scope checking for the
// Micropub endpoints.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/indiepub/indiepub/pkg/logger"
	"github.com/indiepub/indiepub/pkg/networking"
	"github.com/indiepub/indiepub/pkg/versions"
)

// Common errors
var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// introspectionTimeout bounds the outbound call to the token endpoint.
const introspectionTimeout = 5 * time.Second

// Verification is the result of introspecting a bearer token against the
// IndieAuth token endpoint.
type Verification struct {
	// Me is the authenticated identity URL.
	Me string `json:"me"`

	// ClientID is the client the token was issued to.
	ClientID string `json:"client_id"`

	// Scope is the space-delimited scope string embedded in the token.
	Scope string `json:"scope"`

	// Exp is the token's own expiry as epoch seconds. Zero means the
	// token does not expire on its own.
	Exp int64 `json:"exp,omitempty"`
}

// HasScope reports whether the verified token carries the required scope.
func (v *Verification) HasScope(required string) bool {
	return HasScope(v.Scope, required)
}

// Expired reports whether the token's own expiry has passed at the given time.
func (v *Verification) Expired(now time.Time) bool {
	return v.Exp > 0 && now.After(time.Unix(v.Exp, 0))
}

// VerifierConfig contains configuration for the token verifier.
type VerifierConfig struct {
	// TokenEndpoint is the IndieAuth token-introspection endpoint.
	TokenEndpoint string

	// CacheTTL is how long successful verifications are cached.
	CacheTTL time.Duration

	// CACertPath is the path to a CA certificate bundle for HTTPS requests.
	CACertPath string

	// AllowPrivateIPs permits the token endpoint to resolve to private
	// addresses and to use plain HTTP. Local development only.
	AllowPrivateIPs bool
}

// Verifier validates opaque bearer tokens against an IndieAuth token
// endpoint, caching successful results.
type Verifier struct {
	endpoint string
	cacheTTL time.Duration
	cache    *TokenCache
	client   *http.Client
}

// NewVerifier creates a token verifier with the given cache. Passing a
// shared cache lets tests reset state via Clear.
func NewVerifier(config VerifierConfig, cache *TokenCache) (*Verifier, error) {
	if config.TokenEndpoint == "" {
		return nil, fmt.Errorf("token endpoint is required")
	}
	if cache == nil {
		cache = NewTokenCache()
	}

	client, err := networking.NewHttpClientBuilder().
		WithCABundle(config.CACertPath).
		WithPrivateIPs(config.AllowPrivateIPs).
		WithTimeout(introspectionTimeout).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Verifier{
		endpoint: config.TokenEndpoint,
		cacheTTL: ttl,
		cache:    cache,
		client:   client,
	}, nil
}

// Cache returns the verifier's token cache.
func (v *Verifier) Cache() *TokenCache {
	return v.cache
}

// Verify introspects a bearer token. Every failure mode (empty token,
// endpoint timeout, non-2xx status, malformed response, missing claims)
// produces ErrInvalidToken so clients cannot probe the endpoint through us.
func (v *Verifier) Verify(ctx context.Context, token string) (*Verification, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}

	if cached, ok := v.cache.Get(token); ok {
		return cached, nil
	}

	verification, err := v.introspect(ctx, token)
	if err != nil {
		logger.Debugw("token introspection failed", "error", err)
		return nil, ErrInvalidToken
	}

	v.cache.Set(token, verification, v.cacheTTL)
	return verification, nil
}

// introspect performs the outbound call to the token endpoint.
func (v *Verifier) introspect(ctx context.Context, token string) (*Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, introspectionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", versions.UserAgent())

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("introspection failed, status %d", resp.StatusCode)
	}

	var verification Verification
	if err := json.NewDecoder(resp.Body).Decode(&verification); err != nil {
		return nil, fmt.Errorf("failed to decode introspection JSON: %w", err)
	}

	// A usable verification must identify the user and carry a scope.
	if verification.Me == "" || verification.Scope == "" {
		return nil, ErrInvalidToken
	}
	if verification.Expired(time.Now()) {
		return nil, ErrTokenExpired
	}

	return &verification, nil
}

// ExtractBearerToken reads the bearer token from the Authorization
// header. The scheme match is case-insensitive and surrounding
// whitespace is trimmed. Returns ErrNoToken if the header is absent or
// carries a different scheme.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrNoToken
	}

	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrNoToken
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
