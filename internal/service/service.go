// Package service holds the operation rules of the campus network: input
// sanitization, action limits and authorization run here before any store call,
// and change events are published after successful writes.
package service

import (
	"context"
	"errors"
	"strconv"

	"campushub/internal/models"
	"campushub/internal/ratelimit"
	"campushub/internal/validation"
)

// AdminFunc reports whether userID is a site admin.
type AdminFunc func(ctx context.Context, userID uint) (bool, error)

// Guard holds the checks shared by every service.
type Guard struct {
	limiters *ratelimit.Limiters
	isAdmin  AdminFunc
}

// NewGuard builds a Guard. Either argument may be nil: a nil limiter admits
// everything and a nil isAdmin treats nobody as admin.
func NewGuard(limiters *ratelimit.Limiters, isAdmin AdminFunc) *Guard {
	return &Guard{limiters: limiters, isAdmin: isAdmin}
}

// Allow spends one token of action for userID.
func (g *Guard) Allow(action ratelimit.Action, userID uint) error {
	return g.AllowN(action, userID, 1)
}

// AllowN spends n tokens of action for userID, all or nothing.
func (g *Guard) AllowN(action ratelimit.Action, userID uint, n int) error {
	if g == nil || g.limiters == nil {
		return nil
	}
	if !g.limiters.AllowN(action, strconv.FormatUint(uint64(userID), 10), n) {
		return models.NewRateLimitedError(string(action))
	}
	return nil
}

// IsAdmin reports site admin status.
func (g *Guard) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	if g == nil || g.isAdmin == nil || userID == 0 {
		return false, nil
	}
	return g.isAdmin(ctx, userID)
}

// RequireAdmin fails with Forbidden unless userID is a site admin.
func (g *Guard) RequireAdmin(ctx context.Context, userID uint) error {
	admin, err := g.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError("Admin access required")
	}
	return nil
}

// OwnerOrAdmin fails with Forbidden unless userID owns the resource or is a site admin.
func (g *Guard) OwnerOrAdmin(ctx context.Context, ownerID, userID uint, message string) error {
	if ownerID == userID && userID != 0 {
		return nil
	}
	admin, err := g.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError(message)
	}
	return nil
}

// clean sanitizes raw for field and maps rejections to validation errors.
func clean(field validation.Field, raw string) (string, error) {
	s, err := validation.Sanitize(field, raw)
	if err != nil {
		var ve *validation.Error
		if errors.As(err, &ve) {
			return "", models.NewValidationError(ve.Error())
		}
		return "", models.NewValidationError(err.Error())
	}
	return s, nil
}

func requireUser(userID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Sign in required")
	}
	return nil
}
