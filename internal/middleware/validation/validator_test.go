package validation

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{Logger: zap.NewNop()}))
	app.Get("/api/metrics/daily", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post("/api/metrics/fetch-date", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestValidDatesPass(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/api/metrics/daily?start_date=2026-08-01&end_date=2026-08-07", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMalformedDateRejected(t *testing.T) {
	app := newTestApp()

	for _, value := range []string{"08/01/2026", "2026-13-01", "2026-08-32", "yesterday"} {
		req := httptest.NewRequest("GET", "/api/metrics/daily?start_date="+value, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "value %q should be rejected", value)
	}
}

func TestBotIDMustBeInteger(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("GET", "/api/metrics/daily?bot_id=7", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/metrics/daily?bot_id=abc", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUnknownMetricTypeRejected(t *testing.T) {
	app := newTestApp()

	for value, want := range map[string]int{
		"learn":    fiber.StatusOK,
		"workflow": fiber.StatusOK,
		"talk":     fiber.StatusOK,
		"chat":     fiber.StatusBadRequest,
		"banana":   fiber.StatusBadRequest,
	} {
		req := httptest.NewRequest("GET", "/api/metrics/daily?type="+value, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, "type %q", value)
	}
}

func TestUnsupportedContentTypeRejected(t *testing.T) {
	app := newTestApp()

	req := httptest.NewRequest("POST", "/api/metrics/fetch-date", nil)
	req.Header.Set("Content-Type", "text/xml")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/metrics/fetch-date", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
