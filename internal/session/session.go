// Package session issues and verifies access tokens and resolves the signed-in
// user's profile and admin status once per request.
package session

import (
	"context"
	"time"

	"campushub/internal/models"
)

// Session is the authenticated caller.
type Session struct {
	UserID    uint            `json:"user_id"`
	Email     string          `json:"email"`
	Profile   *models.Profile `json:"profile"`
	Admin     bool            `json:"is_admin"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Onboarded reports whether the profile has both a username and a display name.
// A session whose profile could not be loaded is not onboarded.
func (s *Session) Onboarded() bool {
	return s != nil && s.Profile.Onboarded()
}

// IsAdmin reports the admin status resolved by the Authorizer.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Admin
}

type sessionKey struct{}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
