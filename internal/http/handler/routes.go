package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"pdfslot/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// uploadMiddleware runs before the upload handler only (e.g. rate limiting).
func RegisterRoutes(app *fiber.App, docSvc service.DocumentService, log zerolog.Logger, uploadMiddleware ...fiber.Handler) {
	app.Get("/health", HealthCheck(docSvc))
	app.Get("/healthz", LivenessProbe())

	upload := append(append([]fiber.Handler{}, uploadMiddleware...), UploadPDF(docSvc, log))
	app.Post("/upload", upload...)
	app.Get("/latest-pdf", LatestPDF(docSvc, log))
}
