// Package jwt authenticates callers holding a session token from the hosted
// identity provider. Tokens are RS256/384/512 JWTs verified against the
// provider's JWKS; the token subject is the caller's profile id. Clinic and
// role are never read from the token, they come from the profile row.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/vetora/vetora/pkg/auth"
	"github.com/vetora/vetora/pkg/debug"
)

const maxJWKSBytes = 1 << 20

// Config configures the authenticator.
type Config struct {
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// JWKSURL serves the provider's signing keys.
	JWKSURL string

	// EmailClaim names the claim copied into Identity.Email. Default "email".
	EmailClaim string

	// CookieName is read when the request has no Authorization header,
	// for browser sessions. Empty disables cookies.
	CookieName string

	// CacheTTL bounds how long fetched keys are trusted. Default 1h.
	CacheTTL time.Duration

	// RefreshInterval is the minimum time between fetches triggered by an
	// unknown key id. Default 1m.
	RefreshInterval time.Duration

	// Leeway tolerates clock skew on exp, nbf and iat. Default 30s.
	Leeway time.Duration

	// HTTPClient fetches the JWKS. Default http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.EmailClaim == "" {
		c.EmailClaim = "email"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Minute
	}
	if c.Leeway <= 0 {
		c.Leeway = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator verifies provider session tokens.
type Authenticator struct {
	cfg    Config
	keys   *keySet
	parser *jwtlib.Parser
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates an authenticator. Keys are fetched lazily on first use.
func New(cfg Config) *Authenticator {
	cfg.defaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{
		cfg: cfg,
		keys: &keySet{
			url:             cfg.JWKSURL,
			client:          cfg.HTTPClient,
			ttl:             cfg.CacheTTL,
			refreshInterval: cfg.RefreshInterval,
			now:             time.Now,
		},
		parser: jwtlib.NewParser(opts...),
	}
}

// Authenticate abstains when the request carries no JWT (no credentials,
// another scheme, or a bearer value that is not three dot-separated
// segments, such as an API key). A JWT that fails verification is a No.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	raw, ok := a.token(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	claims := jwtlib.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid")
		}
		return a.keys.lookup(ctx, kid)
	})
	if err != nil {
		debug.Log("auth", "session token rejected", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid session token: %w", err)}
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return auth.AuthResult{Decision: auth.No, Err: errors.New("session token has no subject")}
	}

	id := &auth.Identity{Subject: sub, Metadata: map[string]string{"provider": "jwt"}}
	if email, ok := claims[a.cfg.EmailClaim].(string); ok {
		id.Email = email
	}
	if iss, _ := claims.GetIssuer(); iss != "" {
		id.Metadata["issuer"] = iss
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}

// token returns the JWT carried by the request. The Authorization header
// wins over the session cookie.
func (a *Authenticator) token(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, found := strings.CutPrefix(h, "Bearer ")
		if !found {
			return "", false
		}
		raw = strings.TrimSpace(raw)
		return raw, looksLikeJWT(raw)
	}
	if a.cfg.CookieName == "" {
		return "", false
	}
	c, err := r.Cookie(a.cfg.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func looksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2
}

// keySet caches the provider's RSA signing keys by key id.
type keySet struct {
	url             string
	client          *http.Client
	ttl             time.Duration
	refreshInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// lookup returns the key for kid. Stale or missing keys trigger a fetch;
// fetches for unknown ids are spaced by refreshInterval. When a fetch fails
// a previously known key keeps serving.
func (k *keySet) lookup(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	age := now.Sub(k.fetched)
	key, known := k.keys[kid]
	if known && age < k.ttl {
		return key, nil
	}
	if !known && !k.fetched.IsZero() && age < k.refreshInterval {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}

	if err := k.refresh(ctx, now); err != nil {
		if known {
			slog.Warn("JWKS refresh failed, using cached key", "kid", kid, "error", err)
			return key, nil
		}
		return nil, err
	}

	if key, ok := k.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown key id %q", kid)
}

// refresh replaces the cached keys. Called with mu held.
func (k *keySet) refresh(ctx context.Context, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("building JWKS request: %w", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching JWKS: status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&doc); err != nil {
		return fmt.Errorf("decoding JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, j := range doc.Keys {
		if j.Kty != "RSA" || j.Kid == "" || (j.Use != "" && j.Use != "sig") {
			continue
		}
		pub, err := j.rsaKey()
		if err != nil {
			slog.Warn("ignoring JWKS key", "kid", j.Kid, "error", err)
			continue
		}
		keys[j.Kid] = pub
	}

	k.keys = keys
	k.fetched = now
	debug.Log("auth", "JWKS refreshed", "keys", len(keys))
	return nil
}

// jwk is one entry of a JSON Web Key Set (RFC 7517).
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (j jwk) rsaKey() (*rsa.PublicKey, error) {
	n, err := base64URLInt(j.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64URLInt(j.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	if !e.IsInt64() || e.Int64() < 2 || e.Int64() > math.MaxInt32 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func base64URLInt(s string) (*big.Int, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty value")
	}
	return new(big.Int).SetBytes(b), nil
}
