package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCORSApp(origins []string) *fiber.App {
	app := fiber.New()
	app.Use(CORS(origins))
	app.Post("/upload", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "PDF uploaded successfully"})
	})
	app.Get("/latest-pdf", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="a.pdf"`)
		c.Type("pdf")
		return c.SendString("%PDF-1.4")
	})
	return app
}

func TestCORS(t *testing.T) {
	const origin = "https://app.example.com"

	t.Run("preflight upload from allowed origin", func(t *testing.T) {
		app := newCORSApp([]string{origin})

		req := httptest.NewRequest(fiber.MethodOptions, "/upload", nil)
		req.Header.Set(fiber.HeaderOrigin, origin)
		req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
		req.Header.Set(fiber.HeaderAccessControlRequestHeaders, "Content-Type")

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Equal(t, origin, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), fiber.MethodPost)
		assert.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
	})

	t.Run("download exposes content disposition", func(t *testing.T) {
		app := newCORSApp([]string{origin})

		req := httptest.NewRequest(fiber.MethodGet, "/latest-pdf", nil)
		req.Header.Set(fiber.HeaderOrigin, origin)

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, origin, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlExposeHeaders), fiber.HeaderContentDisposition)
	})

	t.Run("unknown origin gets no grant", func(t *testing.T) {
		app := newCORSApp([]string{origin})

		req := httptest.NewRequest(fiber.MethodGet, "/latest-pdf", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://evil.example.org")

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	})

	t.Run("wildcard without credentials", func(t *testing.T) {
		app := newCORSApp(nil)

		req := httptest.NewRequest(fiber.MethodGet, "/latest-pdf", nil)
		req.Header.Set(fiber.HeaderOrigin, origin)

		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
	})
}
