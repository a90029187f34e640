package server

import (
	"agora/internal/suggest"

	"github.com/gofiber/fiber/v2"
)

// GenerateSamplePosts handles POST /api/generate/sample-posts. Without a
// configured generator, or when generation fails, the static fallback set
// is returned so the client always has content to show.
func (s *Server) GenerateSamplePosts(c *fiber.Ctx) error {
	if s.generator == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"posts": suggest.FallbackPosts})
	}

	posts, err := s.generator.SamplePosts(c.UserContext())
	if err != nil || len(posts) == 0 {
		posts = suggest.FallbackPosts
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"posts": posts})
}

// GeneratePostDraft handles POST /api/generate/post and returns a draft
// for the requested topic.
func (s *Server) GeneratePostDraft(c *fiber.Ctx) error {
	var req struct {
		Topic string `json:"topic"`
	}
	_ = c.BodyParser(&req)

	if s.generator == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"content": suggest.FallbackPostContent(req.Topic),
		})
	}

	content, err := s.generator.GeneratePost(c.UserContext(), req.Topic)
	if err != nil || content == "" {
		content = suggest.FallbackPostContent(req.Topic)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"content": content})
}
