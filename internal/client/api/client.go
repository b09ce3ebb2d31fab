// Package api is a client for the identityd HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/gofiber/fiber/v3"
	fclient "github.com/gofiber/fiber/v3/client"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// Error is a failure reported by the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == fiber.StatusUnauthorized
}

type HistoryEntry struct {
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone,omitempty"`
	Bio        string         `json:"bio,omitempty"`
	IsVerified bool           `json:"isVerified"`
	History    []HistoryEntry `json:"history"`
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *User  `json:"user"`
}

// ProfileChanges lists the fields to update; nil fields are left alone.
type ProfileChanges struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Bio   *string `json:"bio,omitempty"`
}

// Client talks to one identityd server and remembers the session token of
// the last successful login.
type Client struct {
	http   *fclient.Client
	server string
	token  string
}

func NewClient(serverURL string, timeout time.Duration) *Client {
	return &Client{
		http:   fclient.New().SetTimeout(timeout),
		server: strings.TrimRight(serverURL, "/"),
	}
}

func (c *Client) url(path string) string {
	return c.server + common.BasePath + path
}

func (c *Client) Token() string { return c.token }

func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) LoggedIn() bool { return c.token != "" }

func (c *Client) Logout() { c.token = "" }

func (c *Client) config(ctx context.Context, body any, authenticated bool) fclient.Config {
	cfg := fclient.Config{Ctx: ctx, Body: body, Header: map[string]string{}}
	if authenticated {
		cfg.Header[fiber.HeaderAuthorization] = common.BearerScheme + " " + c.token
	}
	return cfg
}

// do sends one request and decodes the common response envelope. Transport
// failures are reported as ErrUnavailable.
func (c *Client) do(ctx context.Context, method, path string, body any, authenticated bool) (*envelope, error) {
	if authenticated && c.token == "" {
		return nil, ErrNotLoggedIn
	}

	cfg := c.config(ctx, body, authenticated)

	var (
		resp *fclient.Response
		err  error
	)
	switch method {
	case fiber.MethodGet:
		resp, err = c.http.Get(c.url(path), cfg)
	case fiber.MethodPut:
		resp, err = c.http.Put(c.url(path), cfg)
	default:
		resp, err = c.http.Post(c.url(path), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Close()

	var env envelope
	isJSON := strings.HasPrefix(resp.Header(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
	if isJSON {
		if err := resp.JSON(&env); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode() >= fiber.StatusBadRequest || (isJSON && !env.Success) {
		msg := env.Message
		if msg == "" {
			msg = resp.Status()
		}
		return nil, &Error{Status: resp.StatusCode(), Message: msg}
	}
	return &env, nil
}

// Signup registers an account. The server mails a verification link; the
// returned session token only becomes useful for login after verification.
func (c *Client) Signup(ctx context.Context, name, email, password string) (*User, error) {
	env, err := c.do(ctx, fiber.MethodPost, "/signup", map[string]string{
		"name": name, "email": email, "password": password,
	}, false)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

// Login authenticates and stores the session token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	env, err := c.do(ctx, fiber.MethodPost, "/login", map[string]string{
		"email": email, "password": password,
	}, false)
	if err != nil {
		return nil, err
	}
	c.token = env.Token
	return env.User, nil
}

func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	_, err := c.do(ctx, fiber.MethodPost, "/verify-email", map[string]string{"token": token}, false)
	return err
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	env, err := c.do(ctx, fiber.MethodPost, "/forgot-password", map[string]string{"email": email}, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) VerifyOTP(ctx context.Context, email, otp string) error {
	_, err := c.do(ctx, fiber.MethodPost, "/verifyotp", map[string]string{"email": email, "otp": otp}, false)
	return err
}

func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) error {
	_, err := c.do(ctx, fiber.MethodPost, "/resetPassword", map[string]string{
		"email": email, "newPassword": newPassword,
	}, false)
	return err
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	env, err := c.do(ctx, fiber.MethodGet, "/profile", nil, true)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, changes ProfileChanges) (*User, error) {
	env, err := c.do(ctx, fiber.MethodPut, "/update-profile", changes, true)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	_, err := c.do(ctx, fiber.MethodPut, "/change-password", map[string]string{
		"currentPassword": current, "newPassword": next,
	}, true)
	return err
}

func (c *Client) SaveHistory(ctx context.Context, label string) error {
	_, err := c.do(ctx, fiber.MethodPost, "/save-history", map[string]string{"label": label}, true)
	return err
}

// Ping checks that the server answers its liveness probe.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.Get(c.server+"/healthz", fclient.Config{Ctx: ctx})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Close()
	if resp.StatusCode() != fiber.StatusOK {
		return &Error{Status: resp.StatusCode(), Message: resp.Status()}
	}
	return nil
}
