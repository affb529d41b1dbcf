// Package apikey provides an API key authenticator for service accounts
// and scripted clients. Keys are compared as SHA-256 hashes in constant
// time; each key maps to the profile id of the account it acts as.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/vetora/vetora/pkg/auth"
)

// HeaderName is the dedicated API key header. Keys may also be sent as a
// bearer token.
const HeaderName = "X-API-Key"

// KeyEntry maps a key hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []KeyEntry
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an API key authenticator from a list of raw keys and identities.
// Keys are hashed immediately; plaintext keys are not stored.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, KeyEntry{
			KeyHash:  sha256.Sum256([]byte(e.Key)),
			Identity: e.Identity,
		})
	}
	return a
}

// Authenticate checks the X-API-Key header, then the bearer token.
// Bearer tokens shaped like a JWT (three dot-separated segments) are left
// to the JWT authenticator.
//
// Decision outcomes:
//   - Abstain: no key presented
//   - No: a key was presented but is unknown
//   - Yes: the key matched
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	key := strings.TrimSpace(r.Header.Get(HeaderName))
	if key == "" {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return auth.AuthResult{Decision: auth.Abstain}
		}
		key = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if key == "" {
			return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
		}
		if strings.Count(key, ".") == 2 {
			return auth.AuthResult{Decision: auth.Abstain}
		}
	}

	// Hash the key and compare against stored hashes.
	keyHash := sha256.Sum256([]byte(key))

	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(keyHash[:], entry.KeyHash[:]) == 1 {
			// Copy identity to avoid shared state.
			id := entry.Identity
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}

	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}
