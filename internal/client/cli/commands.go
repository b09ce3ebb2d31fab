package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/identityd/internal/client/api"
)

var errPasswordsDiffer = errors.New("passwords do not match")

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

// newPassword asks for a password twice.
func (a *App) newPassword() (string, error) {
	pw, err := getPassword("Enter new password", a.out)
	if err != nil {
		return "", err
	}
	again, err := getPassword("Repeat new password", a.out)
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errPasswordsDiffer
	}
	return pw, nil
}

// Register creates an account. The server mails a verification link that
// must be confirmed with "verify" before logging in.
func (a *App) Register(ctx context.Context) error {
	name, err := a.prompt("Enter name")
	if err != nil {
		return err
	}
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := a.newPassword()
	if err != nil {
		return err
	}

	if _, err := a.api.Signup(ctx, name, email, password); err != nil {
		return err
	}

	a.printf("Registered. Check your inbox for the verification link, then run 'verify'.\n")
	return nil
}

// Verify confirms an email address with the token from the verification
// link.
func (a *App) Verify(ctx context.Context, token string) error {
	if token == "" {
		var err error
		if token, err = a.prompt("Paste the verification token"); err != nil {
			return err
		}
	}

	if err := a.api.VerifyEmail(ctx, token); err != nil {
		return err
	}

	a.printf("Email verified. You can now log in.\n")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}

	user, err := a.api.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			a.setMode(ModeOffline)
		}
		return err
	}

	a.userName = user.Email
	a.setMode(ModeOnline)
	a.printf("Welcome, %s!\n", user.Name)
	return nil
}

// Forgot runs the password recovery flow: request a code, confirm it and
// set a new password.
func (a *App) Forgot(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}

	msg, err := a.api.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}
	a.printf("%s\n", msg)

	code, err := a.prompt("Enter the code from the email")
	if err != nil {
		return err
	}
	if err := a.api.VerifyOTP(ctx, email, code); err != nil {
		return err
	}

	password, err := a.newPassword()
	if err != nil {
		return err
	}
	if err := a.api.ResetPassword(ctx, email, password); err != nil {
		return err
	}

	a.printf("Password reset. You can now log in with the new password.\n")
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	u, err := a.api.Profile(ctx)
	if err != nil {
		return err
	}

	a.printf("Name:     %s\n", u.Name)
	a.printf("Email:    %s (verified: %t)\n", u.Email, u.IsVerified)
	if u.Phone != "" {
		a.printf("Phone:    %s\n", u.Phone)
	}
	if u.Bio != "" {
		a.printf("Bio:      %s\n", u.Bio)
	}
	a.printf("History:  %d entries\n", len(u.History))
	for _, h := range u.History {
		a.printf("  %s  %s\n", h.CreatedAt.Format("2006-01-02 15:04"), h.Label)
	}
	return nil
}

// Update prompts for each profile field; an empty answer keeps the value.
func (a *App) Update(ctx context.Context) error {
	var changes api.ProfileChanges

	fields := []struct {
		prompt string
		dst    **string
	}{
		{"New name (empty to keep)", &changes.Name},
		{"New email (empty to keep)", &changes.Email},
		{"New phone (empty to keep)", &changes.Phone},
		{"New bio (empty to keep)", &changes.Bio},
	}
	for _, f := range fields {
		v, err := a.prompt(f.prompt)
		if err != nil {
			return err
		}
		if v != "" {
			*f.dst = &v
		}
	}

	u, err := a.api.UpdateProfile(ctx, changes)
	if err != nil {
		return err
	}

	a.userName = u.Email
	a.printf("Profile updated.\n")
	return nil
}

func (a *App) Passwd(ctx context.Context) error {
	current, err := getPassword("Enter current password", a.out)
	if err != nil {
		return err
	}
	next, err := a.newPassword()
	if err != nil {
		return err
	}

	if err := a.api.ChangePassword(ctx, current, next); err != nil {
		return err
	}

	a.printf("Password changed.\n")
	return nil
}

func (a *App) History(ctx context.Context, label string) error {
	if label == "" {
		var err error
		if label, err = a.prompt("Enter label"); err != nil {
			return err
		}
	}

	if err := a.api.SaveHistory(ctx, label); err != nil {
		return err
	}

	a.printf("History saved.\n")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.api.Logout()
	a.userName = ""
	a.printf("Logged out.\n")
	return nil
}
