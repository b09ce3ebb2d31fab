package http

import (
	"github.com/dmitrijs2005/identityd/internal/server/identity"
	"github.com/gofiber/fiber/v3"
)

func failure(message string) fiber.Map {
	return fiber.Map{"success": false, "message": message}
}

// statusFor maps an identity error kind to an HTTP status code.
func statusFor(kind identity.Kind) int {
	switch kind {
	case identity.KindNotFound:
		return fiber.StatusNotFound
	case identity.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case identity.KindDispatchFailure, identity.KindServerError:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}

// writeError renders err with its public message only.
func (s *Server) writeError(c fiber.Ctx, err error) error {
	kind := identity.KindOf(err)
	if kind == identity.KindServerError {
		s.logger.Error(c.Context(), "request failed", "path", c.Path(), "error", err)
	}
	return c.Status(statusFor(kind)).JSON(failure(identity.PublicMessage(err)))
}
