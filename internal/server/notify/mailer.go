package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(
		`<h1>Welcome 👋</h1>
<h2>Hi {{.Name}} 👋</h2>
<p>Please click the link below to verify your email:</p>
<a href="{{.Link}}">Verify Email</a>
<p>This link will expire in {{.Expires}}.</p>
`))

	recoveryTmpl = template.Must(template.New("recovery").Parse(
		`<h1>Welcome 👋</h1>
<h2>Hi {{.Name}} 👋</h2>
<p>Your password reset code is:</p>
<h2>{{.Code}}</h2>
<p>This code will expire in {{.Expires}}.</p>
`))
)

type MailerConfig struct {
	From string
	// BaseURL is the public prefix of the auth routes; the verification link
	// is BaseURL + "/verify-email?token=...".
	BaseURL         string
	VerificationTTL time.Duration
}

// Mailer implements Gateway by rendering HTML emails and passing them to a
// Sender.
type Mailer struct {
	cfg    MailerConfig
	sender Sender
	now    func() time.Time
}

func NewMailer(cfg MailerConfig, sender Sender) *Mailer {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Mailer{cfg: cfg, sender: sender, now: time.Now}
}

// VerificationLink builds the confirmation URL carrying token.
func (m *Mailer) VerificationLink(token string) string {
	return m.cfg.BaseURL + "/verify-email?token=" + url.QueryEscape(token)
}

func (m *Mailer) SendVerification(ctx context.Context, to Recipient, token string) error {
	var body bytes.Buffer
	err := verificationTmpl.Execute(&body, map[string]string{
		"Name":    to.Name,
		"Link":    m.VerificationLink(token),
		"Expires": humanDuration(m.cfg.VerificationTTL),
	})
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}
	return m.send(ctx, KindVerification, to, "Verify your email", body.String())
}

func (m *Mailer) SendRecoveryCode(ctx context.Context, to Recipient, code string, ttl time.Duration) error {
	var body bytes.Buffer
	err := recoveryTmpl.Execute(&body, map[string]string{
		"Name":    to.Name,
		"Code":    code,
		"Expires": humanDuration(ttl),
	})
	if err != nil {
		return fmt.Errorf("render recovery email: %w", err)
	}
	return m.send(ctx, KindRecoveryCode, to, "Your password reset code", body.String())
}

func (m *Mailer) send(ctx context.Context, kind string, to Recipient, subject, html string) error {
	msg := Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		From:      m.cfg.From,
		To:        to.Email,
		Subject:   subject,
		HTML:      html,
		CreatedAt: m.now().UTC(),
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	return nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int64(math.Ceil(d.Minutes())), "minute")
	default:
		return plural(int64(math.Ceil(d.Seconds())), "second")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
