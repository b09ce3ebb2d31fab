// Package http exposes the identity service as JSON over HTTP.
package http

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/dmitrijs2005/identityd/internal/logging"
	"github.com/dmitrijs2005/identityd/internal/server/auth"
	"github.com/dmitrijs2005/identityd/internal/server/identity"
	"github.com/dmitrijs2005/identityd/internal/server/models"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

const shutdownTimeout = 5 * time.Second

// Service is the part of identity.Service the transport calls.
type Service interface {
	Register(ctx context.Context, in identity.RegisterInput) (*identity.AuthResult, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*identity.AuthResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (bool, error)
	ResetPassword(ctx context.Context, email, newPassword string) error
	ChangePassword(ctx context.Context, p auth.Principal, currentPassword, newPassword string) error
	UpdateProfile(ctx context.Context, p auth.Principal, in identity.ProfileUpdate) (*models.Profile, error)
	AppendHistory(ctx context.Context, p auth.Principal, label string) error
	GetProfile(ctx context.Context, p auth.Principal) (*models.Profile, error)
}

// SessionVerifier resolves a bearer token to the account it was issued for.
type SessionVerifier interface {
	VerifySession(token string) (auth.Principal, error)
}

type Server struct {
	address  string
	app      *fiber.App
	service  Service
	sessions SessionVerifier
	logger   logging.Logger
}

func NewServer(address string, l logging.Logger, svc Service, sessions SessionVerifier) *Server {
	s := &Server{
		address:  address,
		service:  svc,
		sessions: sessions,
		logger:   l.With("module", "http_server"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "identityd",
		ErrorHandler: s.handleFiberError,
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(s.requestLogger)
	s.registerRoutes()

	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	api := s.app.Group(common.BasePath)

	api.Post("/signup", s.signup)
	api.Post("/login", s.login)
	api.Get("/verify-email", s.verifyEmail)
	api.Post("/verify-email", s.verifyEmail)
	api.Post("/forgot-password", s.forgotPassword)
	api.Post("/verifyotp", s.verifyOTP)
	api.Post("/resetPassword", s.resetPassword)

	api.Get("/profile", s.requireSession, s.profile)
	api.Put("/update-profile", s.requireSession, s.updateProfile)
	api.Put("/change-password", s.requireSession, s.changePassword)
	api.Post("/save-history", s.requireSession, s.saveHistory)

	s.app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		s.logger.Info(ctx, "Stopping HTTP server...")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	err := s.app.Listen(s.address, fiber.ListenConfig{DisableStartupMessage: true})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// handleFiberError renders errors that escape handlers, such as unknown
// routes, in the common failure shape.
func (s *Server) handleFiberError(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := identity.ErrServer.Message

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		s.logger.Error(c.Context(), "unhandled request error", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(failure(message))
}
