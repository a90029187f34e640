package server

import (
	"agora/internal/models"
	"agora/internal/service"

	"github.com/gofiber/fiber/v2"
)

type sessionResponse struct {
	State           service.SessionState `json:"state"`
	UserID          string               `json:"userId,omitempty"`
	NeedsOnboarding bool                 `json:"needsOnboarding"`
	Profile         *models.Profile      `json:"profile,omitempty"`
}

func sessionView(coord *service.Coordinator) sessionResponse {
	resp := sessionResponse{
		State:           coord.State(),
		UserID:          coord.UserID(),
		NeedsOnboarding: coord.NeedsOnboarding(),
	}
	if profile, err := coord.CurrentUser(); err == nil {
		resp.Profile = &profile
	}
	return resp
}

// StartSession handles POST /api/session. It hydrates the caller's feed
// state from storage and moves the session to ready. Starting an already
// active session is a no-op returning the current state.
func (s *Server) StartSession(c *fiber.Ctx) error {
	uid := callerID(c)
	displayName, _ := c.Locals("displayName").(string)

	s.mu.Lock()
	coord, ok := s.sessions[uid]
	if !ok {
		coord = service.NewCoordinator(s.blobs, s.identity, s.notifier)
		s.sessions[uid] = coord
	}
	s.mu.Unlock()

	if ok {
		return c.Status(fiber.StatusOK).JSON(sessionView(coord))
	}

	if err := coord.BeginSession(c.UserContext(), uid, displayName); err != nil {
		s.dropSession(uid)
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sessionView(coord))
}

// GetSession handles GET /api/session.
func (s *Server) GetSession(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}
	return c.Status(fiber.StatusOK).JSON(sessionView(coord))
}

// EndSession handles DELETE /api/session. Pending persistence is flushed
// before the session state is discarded.
func (s *Server) EndSession(c *fiber.Ctx) error {
	uid := callerID(c)

	s.mu.Lock()
	coord, ok := s.sessions[uid]
	if ok {
		delete(s.sessions, uid)
	}
	s.mu.Unlock()

	if ok {
		coord.EndSession(c.UserContext())
		coord.Close()
	}
	return c.SendStatus(fiber.StatusNoContent)
}
