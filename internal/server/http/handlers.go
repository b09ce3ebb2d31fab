package http

import (
	"github.com/dmitrijs2005/identityd/internal/server/identity"
	"github.com/gofiber/fiber/v3"
)

const verifiedPage = "<h2>Email verified successfully! 🎉 You can now log in.</h2>"

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	Bio   *string `json:"bio"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type historyRequest struct {
	Label    string `json:"label"`
	Filename string `json:"filename"`
}

var errBadBody = fiber.NewError(fiber.StatusBadRequest, "Invalid request body")

// decode reads a JSON body into v. An empty body leaves v zeroed so the
// service reports the missing fields.
func decode(c fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.Bind().JSON(v); err != nil {
		return errBadBody
	}
	return nil
}

func (s *Server) signup(c fiber.Ctx) error {
	var req signupRequest
	if err := decode(c, &req); err != nil {
		return err
	}

	res, err := s.service.Register(c.Context(), identity.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration successful",
		"token":   res.Token,
		"user":    res.Profile,
	})
}

func (s *Server) login(c fiber.Ctx) error {
	var req loginRequest
	if err := decode(c, &req); err != nil {
		return err
	}

	res, err := s.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   res.Token,
		"user":    res.Profile,
	})
}

// verifyEmail accepts the token from the query string, as sent in the
// emailed link, or from a JSON body.
func (s *Server) verifyEmail(c fiber.Ctx) error {
	token := c.Query("token")
	if token == "" && c.Method() == fiber.MethodPost {
		var req tokenRequest
		if err := decode(c, &req); err != nil {
			return err
		}
		token = req.Token
	}

	if err := s.service.VerifyEmail(c.Context(), token); err != nil {
		return s.writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(verifiedPage)
}

func (s *Server) forgotPassword(c fiber.Ctx) error {
	var req emailRequest
	if err := decode(c, &req); err != nil {
		return err
	}

	if err := s.service.RequestPasswordReset(c.Context(), req.Email); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "If an account exists for this email, a reset code has been sent",
	})
}

func (s *Server) verifyOTP(c fiber.Ctx) error {
	var req verifyOTPRequest
	if err := decode(c, &req); err != nil {
		return err
	}

	ok, err := s.service.VerifyOTP(c.Context(), req.Email, req.OTP)
	if err != nil {
		return s.writeError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid or expired OTP",
		})
	}

	return c.JSON(fiber.Map{"success": true, "message": "OTP verified"})
}

func (s *Server) resetPassword(c fiber.Ctx) error {
	var req resetPasswordRequest
	if err := decode(c, &req); err != nil {
		return err
	}

	if err := s.service.ResetPassword(c.Context(), req.Email, req.NewPassword); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Password reset successfully"})
}

func (s *Server) profile(c fiber.Ctx) error {
	p, _ := PrincipalFrom(c)

	profile, err := s.service.GetProfile(c.Context(), p)
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "user": profile})
}

func (s *Server) updateProfile(c fiber.Ctx) error {
	var req updateProfileRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	p, _ := PrincipalFrom(c)

	profile, err := s.service.UpdateProfile(c.Context(), p, identity.ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Bio:   req.Bio,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"user":    profile,
	})
}

func (s *Server) changePassword(c fiber.Ctx) error {
	var req changePasswordRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	p, _ := PrincipalFrom(c)

	if err := s.service.ChangePassword(c.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "Password changed successfully"})
}

func (s *Server) saveHistory(c fiber.Ctx) error {
	var req historyRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	label := req.Label
	if label == "" {
		label = req.Filename
	}
	p, _ := PrincipalFrom(c)

	if err := s.service.AppendHistory(c.Context(), p, label); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "message": "History saved successfully"})
}
