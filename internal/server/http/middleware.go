package http

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/dmitrijs2005/identityd/internal/server/auth"
	"github.com/gofiber/fiber/v3"
)

type principalKey struct{}

const (
	msgMissingToken = "No token, authorization denied"
	msgInvalidToken = "Invalid token"
)

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(c fiber.Ctx) string {
	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession admits requests carrying a valid session token and stores
// the resolved principal for the handler.
func (s *Server) requireSession(c fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(failure(msgMissingToken))
	}

	p, err := s.sessions.VerifySession(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(failure(msgInvalidToken))
	}

	c.Locals(principalKey{}, p)
	return c.Next()
}

// PrincipalFrom returns the principal stored by the session middleware.
func PrincipalFrom(c fiber.Ctx) (auth.Principal, bool) {
	p, ok := c.Locals(principalKey{}).(auth.Principal)
	return p, ok
}

func (s *Server) requestLogger(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}

	s.logger.Debug(c.Context(), "request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)
	return err
}
