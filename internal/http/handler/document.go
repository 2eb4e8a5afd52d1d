package handler

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"pdfslot/internal/service"
)

// formFields are tried in order; "pdf" is the documented field name.
var formFields = []string{"pdf", "file"}

// UploadResponse is returned after the stored document was replaced.
type UploadResponse struct {
	Message  string `json:"message" example:"PDF uploaded successfully"`
	Filename string `json:"filename" example:"report.pdf"`
	FileID   string `json:"file_id" example:"01927f3e-7c1a-7b5e-9a51-3f0c2d8e4b6a"`
}

// UploadPDF replaces the stored document with the uploaded file.
//
// @Summary  Upload a PDF, replacing the current one
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    pdf formData file true "PDF file"
// @Success  200 {object} UploadResponse
// @Failure  400 {object} errorPayload
// @Failure  429 {object} errorPayload
// @Failure  503 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /upload [post]
func UploadPDF(docSvc service.DocumentService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh := formFile(c)
		if fh == nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "A PDF file is required.")
		}

		// Reject early so a bad extension never opens the temp file.
		if !service.IsPDFFilename(fh.Filename) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILE", "File must be a PDF.")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename, fh.Header.Get(fiber.HeaderContentType), fh.Size)
		if err != nil {
			return writeServiceError(c, log, err)
		}
		return c.Status(fiber.StatusOK).JSON(UploadResponse{
			Message:  "PDF uploaded successfully",
			Filename: doc.Filename,
			FileID:   doc.ID,
		})
	}
}

func formFile(c *fiber.Ctx) *multipart.FileHeader {
	for _, field := range formFields {
		if fh, err := c.FormFile(field); err == nil {
			return fh
		}
	}
	return nil
}

// LatestPDF streams the current document.
//
// @Summary  Download the current PDF
// @Tags     documents
// @Produce  application/pdf
// @Success  200 {file} file
// @Failure  404 {object} errorPayload
// @Failure  503 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /latest-pdf [get]
func LatestPDF(docSvc service.DocumentService, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, rc, err := docSvc.Latest(c.UserContext())
		if err != nil {
			return writeServiceError(c, log, err)
		}

		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, contentDisposition(doc.Filename))
		// fasthttp closes rc once the body is written or the client goes away.
		return c.SendStream(rc, int(doc.Size))
	}
}

// HealthCheck reports the blob store state. It always answers 200.
//
// @Summary  Service health
// @Tags     health
// @Produce  json
// @Success  200 {object} service.HealthStatus
// @Router   /health [get]
func HealthCheck(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(docSvc.Health(c.UserContext()))
	}
}

// LivenessProbe answers 200 while the process is serving.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
