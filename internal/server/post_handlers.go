package server

import (
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feed. With ?following=true the feed narrows to
// posts by the caller and the people they follow.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	posts, err := coord.HomeFeed(c.QueryBool("following"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"posts": posts})
}

// CreatePost handles POST /api/posts.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	var req struct {
		Content  string `json:"content"`
		ImageURL string `json:"imageUrl"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := coord.AddPost(c.UserContext(), req.Content, req.ImageURL)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// CreateComment handles POST /api/posts/:id/comments and returns the post
// with the comment appended.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}
	postID, err := requireParam(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := coord.AddComment(c.UserContext(), postID, req.Text)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// LikePost handles POST /api/posts/:id/like.
func (s *Server) LikePost(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}
	postID, err := requireParam(c, "id")
	if err != nil {
		return nil
	}

	post, err := coord.LikePost(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

// SharePost handles POST /api/posts/:id/share.
func (s *Server) SharePost(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}
	postID, err := requireParam(c, "id")
	if err != nil {
		return nil
	}

	post, err := coord.SharePost(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}
