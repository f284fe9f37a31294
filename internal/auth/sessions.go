package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// Sessions maps opaque bearer tokens to user IDs. Expiry slides forward on
// every successful lookup.
type Sessions struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Sessions{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

func (s *Sessions) Create(userID int64) (string, error) {
	token, err := randomToken(32)
	if err != nil {
		return "", err
	}
	s.cache.Set(token, userID, s.ttl)
	return token, nil
}

func (s *Sessions) Lookup(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	v, ok := s.cache.Get(token)
	if !ok {
		return 0, false
	}
	userID := v.(int64)
	s.cache.Set(token, userID, s.ttl)
	return userID, true
}

func (s *Sessions) Revoke(token string) {
	s.cache.Delete(token)
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RevokeUser drops every session that belongs to userID.
func (s *Sessions) RevokeUser(userID int64) {
	for token, item := range s.cache.Items() {
		if id, ok := item.Object.(int64); ok && id == userID {
			s.cache.Delete(token)
		}
	}
}
