package server

import (
	"net/http/httptest"
	"testing"

	"campushub/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityMiddleware(t *testing.T) {
	app := fiber.New()

	// Apply just the middleware we want to test
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	t.Run("Security Headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
		assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	})

	t.Run("Structured Logging", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestApp_SetsRequestIDAndSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/health/live", nil, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
}

func TestApp_ErrorsNeverLeakInternals(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "leaky")

	// Closing the database turns every query into an internal error.
	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	resp := env.do(t, "GET", "/api/profiles/me", nil, u.token)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body := errorBody(t, resp)
	assert.Equal(t, "Internal server error", body.Error)
	assert.NotContains(t, body.Error, "sql")
}
