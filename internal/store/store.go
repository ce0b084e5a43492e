// Package store holds the mutable session state: pending magic links, the
// refresh-token whitelist, and the access-token blacklist. The memory backend
// is the default; the redis backend exists so multiple instances can share
// one session space.
package store

import (
	"context"
	"time"
)

// MagicLink is a pending passwordless login, keyed by its opaque token.
type MagicLink struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the link's lifetime has elapsed.
func (l MagicLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// SessionStore is the persistence boundary for session state.
//
// The two Take operations are atomic remove-and-return calls: the boolean
// reports whether this caller won the entry. That removal is the gate that
// makes magic links single-use and closes the refresh double-spend window;
// two concurrent callers presenting the same token see exactly one true.
type SessionStore interface {
	SaveMagicLink(ctx context.Context, token string, link MagicLink) error
	TakeMagicLink(ctx context.Context, token string) (MagicLink, bool, error)

	SaveRefreshToken(ctx context.Context, token string, expiresAt time.Time) error
	TakeRefreshToken(ctx context.Context, token string) (bool, error)

	RevokeAccessToken(ctx context.Context, token string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, token string) (bool, error)

	// Cleanup drops entries whose own expiry has passed and reports how many
	// were removed. Pruning a dead blacklist entry cannot resurrect a token:
	// the token's exp already rejects it.
	Cleanup(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
