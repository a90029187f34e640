package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications, newest first.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	entries, err := coord.Notifications()
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"notifications": entries})
}

// GetUnreadCount handles GET /api/notifications/unread-count.
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	count, err := coord.UnreadCount()
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"count": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read.
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}
	id, err := requireParam(c, "id")
	if err != nil {
		return nil
	}

	if err := coord.MarkNotificationRead(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all.
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}

	if err := coord.MarkAllNotificationsRead(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// OpenNotification handles POST /api/notifications/:id/open. It marks the
// notification read and returns where the client should navigate.
func (s *Server) OpenNotification(c *fiber.Ctx) error {
	coord, err := s.coordinator(c)
	if err != nil {
		return nil
	}
	id, err := requireParam(c, "id")
	if err != nil {
		return nil
	}

	target, err := coord.OpenNotification(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(target)
}
