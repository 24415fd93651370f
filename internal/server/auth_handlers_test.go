package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"campushub/internal/models"
	"campushub/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "taken@campus.edu")

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Valid signup",
			body:           fiber.Map{"email": "Fresh@Campus.edu", "password": testPassword},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Missing password",
			body:           fiber.Map{"email": "nopass@campus.edu"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
		{
			name:           "Invalid email",
			body:           fiber.Map{"email": "not-an-email", "password": testPassword},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
		{
			name:           "Weak password",
			body:           fiber.Map{"email": "weak@campus.edu", "password": "short"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   models.CodeValidation,
		},
		{
			name:           "Duplicate email",
			body:           fiber.Map{"email": "TAKEN@campus.edu", "password": testPassword},
			expectedStatus: http.StatusConflict,
			expectedCode:   models.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/auth/signup", tt.body, "")
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorBody(t, resp).Code)
			}
		})
	}
}

func TestSignup_NewAccountIsNotOnboarded(t *testing.T) {
	env := newTestEnv(t)

	var out sessionResponse
	env.expect(t, env.do(t, http.MethodPost, "/api/auth/signup",
		fiber.Map{"email": "new@campus.edu", "password": testPassword}, ""), http.StatusCreated, &out)

	require.NotNil(t, out.Token)
	assert.Equal(t, "Bearer", out.Token.TokenType)
	assert.NotEmpty(t, out.Token.AccessToken)
	assert.False(t, out.Onboarded)
	assert.False(t, out.IsAdmin)
	assert.Equal(t, "new@campus.edu", out.Session.Email)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "login@campus.edu")

	var out sessionResponse
	env.expect(t, env.do(t, http.MethodPost, "/api/auth/login",
		fiber.Map{"email": " LOGIN@campus.edu ", "password": testPassword}, ""), http.StatusOK, &out)
	require.NotNil(t, out.Token)

	resp := env.do(t, http.MethodPost, "/api/auth/login",
		fiber.Map{"email": "login@campus.edu", "password": "wrong-pass1"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", errorBody(t, resp).Error)

	resp = env.do(t, http.MethodPost, "/api/auth/login",
		fiber.Map{"email": "ghost@campus.edu", "password": testPassword}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetSession_ReflectsOnboardingAndAdmin(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, testAdminEmail)

	var before sessionResponse
	env.expect(t, env.do(t, http.MethodGet, "/api/auth/session", nil, u.token), http.StatusOK, &before)
	assert.False(t, before.Onboarded)
	assert.True(t, before.IsAdmin)
	assert.Nil(t, before.Token)

	env.expect(t, env.do(t, http.MethodPost, "/api/onboarding",
		fiber.Map{"username": "dean", "display_name": "The Dean"}, u.token), http.StatusOK, nil)

	var after sessionResponse
	env.expect(t, env.do(t, http.MethodGet, "/api/auth/session", nil, u.token), http.StatusOK, &after)
	assert.True(t, after.Onboarded)
	require.NotNil(t, after.Session.Profile)
	assert.Equal(t, "The Dean", after.Session.Profile.DisplayName)
}

func TestLogout_RevokesTokenAndNotifiesConnections(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "bye@campus.edu")

	events := make(chan realtime.ChangeEvent, 4)
	sub, err := env.feed.Subscribe(context.Background(),
		realtime.FilterID(realtime.TableAuthEvents, "user_id", u.id),
		func(ev realtime.ChangeEvent) { events <- ev })
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	env.expect(t, env.do(t, http.MethodPost, "/api/auth/logout", nil, u.token), http.StatusNoContent, nil)

	select {
	case ev := <-events:
		assert.Equal(t, realtime.TableAuthEvents, ev.Table)
	case <-time.After(time.Second):
		t.Fatal("no auth event after logout")
	}

	resp := env.do(t, http.MethodGet, "/api/auth/session", nil, u.token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "rotate@campus.edu")

	resp := env.do(t, http.MethodPut, "/api/auth/password",
		fiber.Map{"current_password": "not-it-123", "new_password": "newpass2026"}, u.token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/auth/password",
		fiber.Map{"current_password": testPassword, "new_password": "short"}, u.token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.expect(t, env.do(t, http.MethodPut, "/api/auth/password",
		fiber.Map{"current_password": testPassword, "new_password": "newpass2026"}, u.token),
		http.StatusNoContent, nil)

	resp = env.do(t, http.MethodPost, "/api/auth/login",
		fiber.Map{"email": "rotate@campus.edu", "password": testPassword}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env.expect(t, env.do(t, http.MethodPost, "/api/auth/login",
		fiber.Map{"email": "rotate@campus.edu", "password": "newpass2026"}, ""), http.StatusOK, nil)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/profiles/me", "/api/saved", "/api/conversations", "/api/notifications"} {
		t.Run(path, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, models.CodeUnauthorized, errorBody(t, resp).Code)
		})
	}
}
