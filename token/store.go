package token

import "sync/atomic"

// snapshot pairs an access token with the claims decoded from it.
// Snapshots are immutable; the Store swaps whole snapshots so that a reader never sees a
// token together with another token's claims.
type snapshot struct {
	accessToken string
	claims      *Claims
}

// Store caches the current access token and its decoded claims for synchronous reads by
// outgoing requests. It is written only by the session controller that owns it.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// SetAccessToken decodes rawToken and, on success, replaces the stored token and claims in a
// single step (last write wins). On a decoding failure the store is left untouched.
func (s *Store) SetAccessToken(rawToken string) (*Claims, error) {
	claims, err := Decode(rawToken)
	if err != nil {
		return nil, err
	}
	s.current.Store(&snapshot{accessToken: rawToken, claims: claims})
	return claims, nil
}

// AccessToken returns the current raw access token or "" when the store is empty.
func (s *Store) AccessToken() string {
	token, _ := s.Snapshot()
	return token
}

// Claims returns the current claims or nil when the store is empty.
func (s *Store) Claims() *Claims {
	_, claims := s.Snapshot()
	return claims
}

// Snapshot returns the token and claims as one consistent pair.
func (s *Store) Snapshot() (string, *Claims) {
	current := s.current.Load()
	if current == nil {
		return "", nil
	}
	return current.accessToken, current.claims
}

// Present reports whether a token is held.
func (s *Store) Present() bool {
	return s.current.Load() != nil
}

// Clear empties the store.
func (s *Store) Clear() {
	s.current.Store(nil)
}
