// Package session binds browser sessions to the tokens obtained on
// their behalf.
package session

import (
	"context"

	"github.com/meshguard/authservice/pkg/oidc"
)

// Store maps session identifiers to token responses. Implementations
// must be safe for concurrent use across request handling workers.
//
// Set fully replaces any prior value, Get returns the most recent
// successful Set, and Remove makes subsequent Gets return absence.
// Remove is idempotent: a logout racing against a concurrent refresh
// may be followed by a Set that re-creates the session, which callers
// must tolerate.
type Store interface {
	// Get returns the token response bound to a session, or nil
	// when the session does not exist.
	Get(ctx context.Context, sessionID string) (*oidc.TokenResponse, error)
	Set(ctx context.Context, sessionID string, tokenResponse *oidc.TokenResponse) error
	Remove(ctx context.Context, sessionID string) error
}
