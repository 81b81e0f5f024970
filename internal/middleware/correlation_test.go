package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newCorrelationApp() (*fiber.App, *string) {
	var captured string
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/ping", func(c *fiber.Ctx) error {
		captured = GetCorrelationID(c)
		return c.SendStatus(fiber.StatusOK)
	})
	return app, &captured
}

func TestCorrelationIDEchoesClientValue(t *testing.T) {
	app, captured := newCorrelationApp()

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Correlation-ID", id)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, id, resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, id, *captured)
}

func TestCorrelationIDFallsBackToRequestID(t *testing.T) {
	app, captured := newCorrelationApp()

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", id)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, id, resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, id, *captured)
}

func TestCorrelationIDMintsWhenAbsent(t *testing.T) {
	app, captured := newCorrelationApp()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	minted := resp.Header.Get("X-Correlation-ID")
	require.NotEmpty(t, minted)
	require.Equal(t, minted, *captured)
	_, err = uuid.Parse(minted)
	require.NoError(t, err)
}
