package store

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps all session state in process-local maps. State is lost on
// restart; that is the portal's stated single-instance constraint.
type memoryStore struct {
	mu         sync.Mutex
	magicLinks map[string]MagicLink
	whitelist  map[string]time.Time
	blacklist  map[string]time.Time
}

// NewMemory returns an empty in-process SessionStore.
func NewMemory() SessionStore {
	return &memoryStore{
		magicLinks: make(map[string]MagicLink),
		whitelist:  make(map[string]time.Time),
		blacklist:  make(map[string]time.Time),
	}
}

func (s *memoryStore) SaveMagicLink(_ context.Context, token string, link MagicLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.magicLinks[token] = link
	return nil
}

func (s *memoryStore) TakeMagicLink(_ context.Context, token string) (MagicLink, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.magicLinks[token]
	if !ok {
		return MagicLink{}, false, nil
	}
	delete(s.magicLinks, token)
	return link, true, nil
}

func (s *memoryStore) SaveRefreshToken(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[token] = expiresAt
	return nil
}

func (s *memoryStore) TakeRefreshToken(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.whitelist[token]; !ok {
		return false, nil
	}
	delete(s.whitelist, token)
	return true, nil
}

func (s *memoryStore) RevokeAccessToken(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[token] = expiresAt
	return nil
}

func (s *memoryStore) IsAccessTokenRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blacklist[token]
	return ok, nil
}

func (s *memoryStore) Cleanup(_ context.Context) (int, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for token, link := range s.magicLinks {
		// Expired links outlive their deadline by the retention window so
		// redemption can still tell expired apart from unknown.
		if now.After(link.ExpiresAt.Add(expiredLinkRetention)) {
			delete(s.magicLinks, token)
			removed++
		}
	}
	for token, expiresAt := range s.whitelist {
		if now.After(expiresAt) {
			delete(s.whitelist, token)
			removed++
		}
	}
	for token, expiresAt := range s.blacklist {
		if now.After(expiresAt) {
			delete(s.blacklist, token)
			removed++
		}
	}
	return removed, nil
}

func (s *memoryStore) Ping(_ context.Context) error {
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
