package models

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderedPair(t *testing.T) {
	low, high := OrderedPair(9, 3)
	assert.Equal(t, uint(3), low)
	assert.Equal(t, uint(9), high)

	low, high = OrderedPair(3, 9)
	assert.Equal(t, uint(3), low)
	assert.Equal(t, uint(9), high)
}

func TestConversationParticipants(t *testing.T) {
	c := Conversation{UserLowID: 2, UserHighID: 5}
	assert.True(t, c.Includes(2))
	assert.True(t, c.Includes(5))
	assert.False(t, c.Includes(7))
	assert.Equal(t, uint(5), c.Other(2))
	assert.Equal(t, uint(2), c.Other(5))
}

func TestProfileOnboarded(t *testing.T) {
	name := "asha"
	empty := ""

	var nilProfile *Profile
	assert.False(t, nilProfile.Onboarded())
	assert.False(t, (&Profile{DisplayName: "Asha"}).Onboarded())
	assert.False(t, (&Profile{Username: &empty, DisplayName: "Asha"}).Onboarded())
	assert.False(t, (&Profile{Username: &name}).Onboarded())
	assert.True(t, (&Profile{Username: &name, DisplayName: "Asha"}).Onboarded())
}

func TestProfileVerifiedAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&Profile{}).VerifiedAt(now))
	assert.True(t, (&Profile{IsVerified: true}).VerifiedAt(now))
	assert.True(t, (&Profile{IsVerified: true, VerifiedUntil: &future}).VerifiedAt(now))
	assert.False(t, (&Profile{IsVerified: true, VerifiedUntil: &past}).VerifiedAt(now))
}

func TestConfessionDTOHasNoAuthor(t *testing.T) {
	c := Confession{ID: 1, AuthorID: 42, Content: "hi", AuraCount: 2}
	dto := c.ToDTO(true)
	assert.Equal(t, uint(1), dto.ID)
	assert.Equal(t, "hi", dto.Content)
	assert.True(t, dto.Liked)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewNotFoundError("Post", 1), http.StatusNotFound},
		{NewUnauthorizedError("no"), http.StatusUnauthorized},
		{NewForbiddenError("no"), http.StatusForbidden},
		{NewRateLimitedError("post"), http.StatusTooManyRequests},
		{NewConflictError("dup"), http.StatusConflict},
		{NewUpstreamError("media host", errors.New("502")), http.StatusBadGateway},
		{NewInternalError(errors.New("db")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	base := errors.New("root cause")
	err := NewInternalError(base)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "root cause")
}
