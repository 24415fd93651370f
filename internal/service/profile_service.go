package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/repository"
	"campushub/internal/validation"
)

const (
	defaultLeaderboardSize = 50
	maxLeaderboardSize     = 100
	maxProfileSearch       = 20
)

type ProfileService struct {
	profiles repository.ProfileRepository
	guard    *Guard
}

// UpdateProfileInput carries optional profile changes; nil fields are left alone.
type UpdateProfileInput struct {
	UserID      uint
	Username    *string
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

type OnboardInput struct {
	UserID      uint
	Username    string
	DisplayName string
	Bio         string
	AvatarURL   string
}

type SetVerificationInput struct {
	ActorID  uint
	TargetID uint
	Verified bool
	Until    *time.Time
}

func NewProfileService(profiles repository.ProfileRepository, guard *Guard) *ProfileService {
	return &ProfileService{profiles: profiles, guard: guard}
}

func (s *ProfileService) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	return s.profiles.GetByID(ctx, id)
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}
	return s.profiles.GetByUsername(ctx, username)
}

// Search matches username or display name prefixes. A query that sanitizes to
// nothing returns no results without touching the store.
func (s *ProfileService) Search(ctx context.Context, userID uint, query string, limit int) ([]models.Profile, error) {
	if err := s.guard.Allow(ratelimit.ActionSearch, userID); err != nil {
		return nil, err
	}
	term := validation.SanitizeSearch(query)
	if term == "" {
		return []models.Profile{}, nil
	}
	if limit <= 0 || limit > maxProfileSearch {
		limit = maxProfileSearch
	}
	return s.profiles.Search(ctx, term, limit)
}

func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	return s.profiles.Leaderboard(ctx, limit)
}

func (s *ProfileService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if in.Username != nil {
		u, err := clean(validation.FieldUsername, *in.Username)
		if err != nil {
			return nil, err
		}
		fields["username"] = u
	}
	if in.DisplayName != nil {
		d, err := clean(validation.FieldDisplayName, *in.DisplayName)
		if err != nil {
			return nil, err
		}
		fields["display_name"] = d
	}
	if in.Bio != nil {
		b, err := clean(validation.FieldBio, *in.Bio)
		if err != nil {
			return nil, err
		}
		fields["bio"] = b
	}
	if in.AvatarURL != nil {
		a, err := cleanMediaURL(*in.AvatarURL)
		if err != nil {
			return nil, err
		}
		fields["avatar_url"] = a
	}
	if len(fields) == 0 {
		return s.profiles.GetByID(ctx, in.UserID)
	}
	return s.profiles.Update(ctx, in.UserID, fields)
}

// Onboard sets the username and display name a new account needs before it can post.
func (s *ProfileService) Onboard(ctx context.Context, in OnboardInput) (*models.Profile, error) {
	username, displayName := in.Username, in.DisplayName
	return s.UpdateProfile(ctx, UpdateProfileInput{
		UserID:      in.UserID,
		Username:    &username,
		DisplayName: &displayName,
		Bio:         optional(in.Bio),
		AvatarURL:   optional(in.AvatarURL),
	})
}

func (s *ProfileService) SetRole(ctx context.Context, actorID, targetID uint, role models.Role) (*models.Profile, error) {
	if err := s.guard.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, models.NewValidationError("Role must be user or admin")
	}
	if actorID == targetID && role != models.RoleAdmin {
		return nil, models.NewValidationError("You cannot remove your own admin role")
	}
	return s.profiles.SetRole(ctx, targetID, role)
}

func (s *ProfileService) SetVerification(ctx context.Context, in SetVerificationInput) (*models.Profile, error) {
	if err := s.guard.RequireAdmin(ctx, in.ActorID); err != nil {
		return nil, err
	}
	if in.Verified && in.Until != nil && !in.Until.After(time.Now()) {
		return nil, models.NewValidationError("Verification expiry must be in the future")
	}
	return s.profiles.SetVerification(ctx, in.TargetID, in.Verified, in.Until)
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// cleanMediaURL accepts an empty string (clears the field) or an absolute http(s) URL.
func cleanMediaURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", models.NewValidationError("Media URL must be an absolute http(s) URL")
	}
	return u.String(), nil
}

func cleanMediaURLs(raw []string, max int) ([]string, error) {
	if len(raw) > max {
		return nil, models.NewValidationError("Too many media URLs")
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		u, err := cleanMediaURL(r)
		if err != nil {
			return nil, err
		}
		if u != "" {
			out = append(out, u)
		}
	}
	return out, nil
}
