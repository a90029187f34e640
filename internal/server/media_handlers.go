package server

import (
	"io"

	"agora/internal/media"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/media with a multipart "file" field and
// returns the URL the stored image is reachable at.
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("file field is required"))
	}
	if fileHeader.Size > media.MaxUploadSizeBytes {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("file exceeds maximum upload size"))
	}

	f, err := fileHeader.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, media.MaxUploadSizeBytes+1))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if int64(len(content)) > media.MaxUploadSizeBytes {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("file exceeds maximum upload size"))
	}

	url, err := s.uploader.Upload(c.UserContext(), fileHeader.Filename, content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}

// ServeMedia handles GET /api/media/:name for locally stored uploads.
func (s *Server) ServeMedia(c *fiber.Ctx) error {
	if s.localMedia == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("media", c.Params("name")))
	}
	name, err := requireParam(c, "name")
	if err != nil {
		return nil
	}

	content, err := s.localMedia.Open(name)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/webp")
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Status(fiber.StatusOK).Send(content)
}
