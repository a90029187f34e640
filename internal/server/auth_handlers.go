package server

import (
	"log/slog"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/storage"

	"github.com/gofiber/fiber/v2"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type authResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Signup handles POST /api/auth/signup. A fresh account gets the one-shot
// onboarding flag so its first session suggests people to follow.
func (s *Server) Signup(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	account, token, err := s.identity.SignUp(c.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.blobs.Save(c.Context(), storage.OnboardingKey(account.UserID), []byte("true")); err != nil {
		observability.Logger.WarnContext(c.UserContext(), "setting onboarding flag failed",
			slog.String("user_id", account.UserID), slog.String("error", err.Error()))
	}

	return c.Status(fiber.StatusCreated).JSON(authResponse{
		Token:       token,
		UserID:      account.UserID,
		DisplayName: account.DisplayName,
	})
}

// Login handles POST /api/auth/login.
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	account, token, err := s.identity.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(authResponse{
		Token:       token,
		UserID:      account.UserID,
		DisplayName: account.DisplayName,
	})
}
