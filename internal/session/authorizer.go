package session

import (
	"context"
	"errors"
	"strings"

	"campushub/internal/models"
)

// ProfileLookup loads a profile including its email.
type ProfileLookup interface {
	GetProfile(ctx context.Context, id uint) (*models.Profile, error)
}

// Authorizer is the single place admin status is decided: a profile with role admin,
// or an email or username on the configured allowlist.
type Authorizer struct {
	emails    map[string]struct{}
	usernames map[string]struct{}
	profiles  ProfileLookup
}

func NewAuthorizer(emails, usernames []string, profiles ProfileLookup) *Authorizer {
	a := &Authorizer{
		emails:    make(map[string]struct{}, len(emails)),
		usernames: make(map[string]struct{}, len(usernames)),
		profiles:  profiles,
	}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			a.emails[e] = struct{}{}
		}
	}
	for _, u := range usernames {
		if u = strings.ToLower(strings.TrimSpace(u)); u != "" {
			a.usernames[u] = struct{}{}
		}
	}
	return a
}

// Check decides admin status from what is already loaded. email overrides p.Email
// when the profile came from a cache that strips it.
func (a *Authorizer) Check(p *models.Profile, email string) bool {
	if email == "" && p != nil {
		email = p.Email
	}
	if _, ok := a.emails[strings.ToLower(email)]; ok && email != "" {
		return true
	}
	if p == nil {
		return false
	}
	if p.Role == models.RoleAdmin {
		return true
	}
	if h := p.Handle(); h != "" {
		if _, ok := a.usernames[strings.ToLower(h)]; ok {
			return true
		}
	}
	return false
}

// IsAdmin loads userID's profile and checks it. Unknown users are not admins.
func (a *Authorizer) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if a.profiles == nil {
		return false, nil
	}
	p, err := a.profiles.GetProfile(ctx, userID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return false, nil
		}
		return false, err
	}
	return a.Check(p, ""), nil
}
