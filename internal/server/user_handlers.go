package server

import (
	"agora/internal/models"
	"agora/internal/store"

	"github.com/gofiber/fiber/v2"
)

// SearchEverything handles GET /api/search?q=. An empty query is discover
// mode: every profile except the caller, and no posts.
func (s *Server) SearchEverything(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	results, err := coord.Search(c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(results)
}

// GetSuggestedUsers handles GET /api/users/suggested.
func (s *Server) GetSuggestedUsers(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	profiles, err := coord.SuggestedUsers()
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"profiles": profiles})
}

// GetProfile handles GET /api/users/:id and returns the profile with the
// user's posts, newest first.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}
	userID, err := requireParam(c, "id")
	if err != nil {
		return nil
	}

	profile, posts, err := coord.ProfileView(userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"profile": profile,
		"posts":   posts,
	})
}

// UpdateMyProfile handles PUT /api/users/me. A renamed user's identity is
// rewritten across their posts and comments in the same operation.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	var req struct {
		Username      string `json:"username"`
		AvatarURL     string `json:"avatarUrl"`
		Gender        string `json:"gender"`
		Qualification string `json:"qualification"`
		Country       string `json:"country"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := coord.UpdateProfile(c.UserContext(), store.ProfileUpdate{
		Username:      req.Username,
		AvatarURL:     req.AvatarURL,
		Gender:        req.Gender,
		Qualification: req.Qualification,
		Country:       req.Country,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(profile)
}

// UpdateMyAvatar handles PUT /api/users/me/avatar.
func (s *Server) UpdateMyAvatar(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	var req struct {
		AvatarURL string `json:"avatarUrl"`
	}
	if err := c.BodyParser(&req); err != nil || req.AvatarURL == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("avatarUrl is required"))
	}

	profile, err := coord.UpdateAvatar(c.UserContext(), req.AvatarURL)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(profile)
}

// ToggleFollow handles POST /api/users/:id/follow and reports the resulting
// edge state.
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}
	targetID, err := requireParam(c, "id")
	if err != nil {
		return nil
	}

	following, err := coord.ToggleFollow(c.UserContext(), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"following": following})
}
