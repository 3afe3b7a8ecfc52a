// Package auth provides login with offline continuity: after one
// successful online authentication a salted credential verifier is cached
// locally, so the agent can still log in while the service is unreachable.
package auth

import (
	"time"

	"github.com/tildaslashalef/fieldsync/internal/remote"
)

// CachedCredential is the locally stored, non-reversible verifier for a
// user's password plus the last known profile
type CachedCredential struct {
	Username     string
	PasswordHash string
	Profile      *remote.Profile
	UpdatedAt    time.Time
}

// Session is the active authenticated session
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
}
