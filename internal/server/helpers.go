package server

import (
	"errors"

	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// callerID returns the authenticated user id set by AuthRequired.
func callerID(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(string); ok {
		return uid
	}
	return ""
}

// coordinator resolves the caller's active session. On failure it writes a
// 401 JSON response and returns errResponseWritten.
func (s *Server) coordinator(c *fiber.Ctx) (*service.Coordinator, error) {
	uid := callerID(c)
	s.mu.Lock()
	coord, ok := s.sessions[uid]
	s.mu.Unlock()
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("No active session"))
		return nil, errResponseWritten
	}
	return coord, nil
}

// respondError maps an application error onto its HTTP status.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.HTTPStatus(err), err)
}

// requireParam extracts a non-empty route parameter. On failure it writes a
// 400 JSON response and returns errResponseWritten.
func requireParam(c *fiber.Ctx, name string) (string, error) {
	v := c.Params(name)
	if v == "" {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Missing "+name))
		return "", errResponseWritten
	}
	return v, nil
}

// dropSession removes and stops the caller's coordinator, if any.
func (s *Server) dropSession(userID string) {
	s.mu.Lock()
	coord, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
	if ok {
		coord.Close()
	}
}
