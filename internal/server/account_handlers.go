package server

import (
	"github.com/gofiber/fiber/v2"
)

// DeleteAccount handles DELETE /api/account. Local state is purged first
// and stays purged even when the identity provider refuses; a reauth
// demand surfaces as 403 so the client can sign in again and retry the
// remote half. The session is gone either way.
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	deleteErr := coord.DeleteAccount(c.UserContext())
	s.dropSession(callerID(c))

	if deleteErr != nil {
		return respondError(c, deleteErr)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
