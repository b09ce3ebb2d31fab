// Package identity implements the account lifecycle: registration, email
// verification, login, password recovery and profile maintenance. Every
// operation loads one account, applies a transition in memory and persists it
// with a single compare-and-set write.
package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/dmitrijs2005/identityd/internal/logging"
	"github.com/dmitrijs2005/identityd/internal/server/auth"
	"github.com/dmitrijs2005/identityd/internal/server/challenge"
	"github.com/dmitrijs2005/identityd/internal/server/models"
	"github.com/dmitrijs2005/identityd/internal/server/notify"
	"github.com/dmitrijs2005/identityd/internal/server/repositories/accounts"
)

const maxUpdateAttempts = 3

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Tokens issues and checks session and verification tokens.
type Tokens interface {
	IssueSession(accountID, email string) (string, error)
	challenge.VerificationTokens
}

type Options struct {
	// OperationTimeout bounds each repository, hashing and notification call.
	OperationTimeout time.Duration
	// EmailCaseInsensitive stores and looks up emails lower-cased.
	EmailCaseInsensitive bool
}

type Deps struct {
	Accounts accounts.Repository
	Hasher   auth.PasswordHasher
	Tokens   Tokens
	Recovery *challenge.Recovery
	Notifier notify.Gateway
	Logger   logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	accounts accounts.Repository
	hasher   auth.PasswordHasher
	tokens   Tokens
	link     *challenge.Link
	recovery *challenge.Recovery
	notifier notify.Gateway
	logger   logging.Logger
	opts     Options
	now      func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

func NewService(d Deps, opts Options) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Recovery == nil {
		d.Recovery = challenge.NewRecovery(challenge.DefaultCodeDigits, challenge.DefaultCodeTTL, d.Now)
	}
	return &Service{
		accounts: d.Accounts,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		link:     challenge.NewLink(d.Tokens),
		recovery: d.Recovery,
		notifier: d.Notifier,
		logger:   d.Logger.With("module", "identity"),
		opts:     opts,
		now:      d.Now,
	}
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token   string
	Profile models.Profile
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfileUpdate carries the fields UpdateProfile may change. Nil or blank
// fields are left as they are.
type ProfileUpdate struct {
	Name  *string
	Email *string
	Phone *string
	Bio   *string
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

func (s *Service) normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if s.opts.EmailCaseInsensitive {
		email = strings.ToLower(email)
	}
	return email
}

func (s *Service) hash(ctx context.Context, password string) (string, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return auth.HashContext(ctx, s.hasher, password)
}

func (s *Service) verifyPassword(ctx context.Context, password, digest string) (bool, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return auth.VerifyContext(ctx, s.hasher, password, digest)
}

// burnPasswordCheck spends roughly the time of a real password check so an
// unknown email is not distinguishable from a wrong password by latency.
func (s *Service) burnPasswordCheck(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.hasher.Hash("identityd-dummy-password")
	})
	if s.dummyDigest != "" {
		_, _ = s.verifyPassword(ctx, password, s.dummyDigest)
	}
}

func (s *Service) getByEmail(ctx context.Context, email string) (*models.Account, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.accounts.GetByEmail(ctx, email)
}

func (s *Service) getByID(ctx context.Context, id string) (*models.Account, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.accounts.GetByID(ctx, id)
}

type loader func(ctx context.Context) (*models.Account, error)

func (s *Service) byEmail(email string) loader {
	return func(ctx context.Context) (*models.Account, error) { return s.getByEmail(ctx, email) }
}

func (s *Service) byID(id string) loader {
	return func(ctx context.Context) (*models.Account, error) { return s.getByID(ctx, id) }
}

// mutate loads the account, applies fn and writes the result with a
// compare-and-set. A lost race reloads and re-applies fn. Errors from fn are
// returned as is and nothing is written.
func (s *Service) mutate(ctx context.Context, load loader, fn func(ctx context.Context, a *models.Account) error) (*models.Account, error) {
	for attempt := 1; ; attempt++ {
		a, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := fn(ctx, a); err != nil {
			return nil, err
		}

		uctx, cancel := s.bounded(ctx)
		updated, err := s.accounts.Update(uctx, a)
		cancel()
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, common.ErrVersionConflict) || attempt >= maxUpdateAttempts {
			return nil, err
		}
		s.logger.Debug(ctx, "account changed concurrently, retrying", "account_id", a.ID, "attempt", attempt)
	}
}

// storeErr maps repository failures onto service errors. notFound is used
// for common.ErrorNotFound; service errors pass through unchanged.
func (s *Service) storeErr(ctx context.Context, op string, err error, notFound error) error {
	var se *Error
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, common.ErrorNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return ErrDuplicateEmail
	default:
		s.logger.Error(ctx, "account store failure", "op", op, "error", err)
		return internal(op, err)
	}
}

func (s *Service) sendVerification(ctx context.Context, a *models.Account) error {
	token, err := s.link.Issue(a)
	if err != nil {
		return internal("issue verification token", err)
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.notifier.SendVerification(ctx, notify.Recipient{Email: a.Email, Name: a.Name}, token); err != nil {
		s.logger.Error(ctx, "verification email failed", "account_id", a.ID, "error", err)
		return withCause(ErrDispatchFailure, err)
	}
	return nil
}

func (s *Service) issueSession(a *models.Account) (*AuthResult, error) {
	token, err := s.tokens.IssueSession(a.ID, a.Email)
	if err != nil {
		return nil, internal("issue session token", err)
	}
	return &AuthResult{Token: token, Profile: a.Profile()}, nil
}

// Register creates an unverified account and mails a verification link. The
// account is kept when the email cannot be sent; the caller then gets
// ErrDispatchFailure and a later Login re-sends the link.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := s.normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, validation("Please provide all required fields")
	}
	if !emailPattern.MatchString(email) {
		return nil, validation("Please provide a valid email address")
	}

	digest, err := s.hash(ctx, in.Password)
	if err != nil {
		return nil, internal("hash password", err)
	}

	cctx, cancel := s.bounded(ctx)
	a, err := s.accounts.Create(cctx, &models.Account{Name: name, Email: email, PasswordHash: digest})
	cancel()
	if err != nil {
		return nil, s.storeErr(ctx, "create account", err, nil)
	}
	s.logger.Info(ctx, "account registered", "account_id", a.ID)

	if err := s.sendVerification(ctx, a); err != nil {
		return nil, err
	}
	return s.issueSession(a)
}

// VerifyEmail marks the account named by a verification token as verified.
// It succeeds once per account.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return validation("Missing token")
	}

	id, err := s.link.Subject(token)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	_, err = s.mutate(ctx, s.byID(id), func(_ context.Context, a *models.Account) error {
		switch err := s.link.Verify(a, token); {
		case err == nil:
		case errors.Is(err, challenge.ErrConsumed):
			return ErrAlreadyVerified
		default:
			return ErrInvalidOrExpiredToken
		}
		s.link.Consume(a)
		return nil
	})
	if err != nil {
		return s.storeErr(ctx, "verify email", err, ErrNotFound)
	}

	s.logger.Info(ctx, "email verified", "account_id", id)
	return nil
}

// Login checks credentials and returns a session token. Unverified accounts
// are refused with ErrUnverifiedAccount after a fresh link is mailed.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = s.normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validation("Please provide both email and password")
	}

	a, err := s.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnPasswordCheck(ctx, password)
			return nil, ErrInvalidCredentials
		}
		return nil, s.storeErr(ctx, "login", err, nil)
	}

	ok, err := s.verifyPassword(ctx, password, a.PasswordHash)
	if err != nil {
		return nil, internal("verify password", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !a.IsVerified {
		if err := s.sendVerification(ctx, a); err != nil {
			return nil, err
		}
		return nil, ErrUnverifiedAccount
	}

	return s.issueSession(a)
}

// RequestPasswordReset issues a recovery code and mails it. Unknown emails
// succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = s.normalizeEmail(email)
	if email == "" {
		return validation("Email is required")
	}

	var code string
	a, err := s.mutate(ctx, s.byEmail(email), func(_ context.Context, a *models.Account) error {
		var err error
		code, err = s.recovery.Issue(a)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "password reset for unknown email")
			return nil
		}
		return s.storeErr(ctx, "request password reset", err, nil)
	}

	sctx, cancel := s.bounded(ctx)
	defer cancel()
	err = s.notifier.SendRecoveryCode(sctx, notify.Recipient{Email: a.Email, Name: a.Name}, code, s.recovery.TTL())
	if err != nil {
		s.logger.Error(ctx, "recovery email failed", "account_id", a.ID, "error", err)
		return withCause(ErrDispatchFailure, err)
	}
	return nil
}

var (
	errCodeRejected         = errors.New("recovery code rejected")
	errWrongCurrentPassword = &Error{Kind: KindInvalidCredentials, Message: "Current password is incorrect"}
	errEmailInUse           = &Error{Kind: KindDuplicateEmail, Message: "Email already in use"}
)

// VerifyOTP reports whether code is the account's current, unexpired
// recovery code and records the confirmation. A false result changes nothing.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (bool, error) {
	email = s.normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return false, validation("Email and OTP are required")
	}

	_, err := s.mutate(ctx, s.byEmail(email), func(_ context.Context, a *models.Account) error {
		if err := s.recovery.Verify(a, code); err != nil {
			return errCodeRejected
		}
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errCodeRejected), errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, s.storeErr(ctx, "verify otp", err, nil)
	}
}

// ResetPassword replaces the password of an account whose recovery code was
// confirmed by VerifyOTP and has not expired, then clears the code.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = s.normalizeEmail(email)
	if email == "" || newPassword == "" {
		return validation("Email and new password are required")
	}

	digest, err := s.hash(ctx, newPassword)
	if err != nil {
		return internal("hash password", err)
	}

	a, err := s.mutate(ctx, s.byEmail(email), func(_ context.Context, a *models.Account) error {
		if !s.recovery.Confirmed(a) {
			return ErrResetNotConfirmed
		}
		a.PasswordHash = digest
		s.recovery.Consume(a)
		return nil
	})
	if err != nil {
		return s.storeErr(ctx, "reset password", err, ErrResetNotConfirmed)
	}

	s.logger.Info(ctx, "password reset", "account_id", a.ID)
	return nil
}

// ChangePassword replaces the password after checking the current one. A
// wrong current password leaves the stored hash untouched.
func (s *Service) ChangePassword(ctx context.Context, p auth.Principal, currentPassword, newPassword string) error {
	if p.AccountID == "" {
		return ErrUnauthenticated
	}
	if currentPassword == "" || newPassword == "" {
		return validation("Please provide both current and new password")
	}

	var digest string
	_, err := s.mutate(ctx, s.byID(p.AccountID), func(ctx context.Context, a *models.Account) error {
		ok, err := s.verifyPassword(ctx, currentPassword, a.PasswordHash)
		if err != nil {
			return internal("verify password", err)
		}
		if !ok {
			return errWrongCurrentPassword
		}
		if digest == "" {
			if digest, err = s.hash(ctx, newPassword); err != nil {
				return internal("hash password", err)
			}
		}
		a.PasswordHash = digest
		return nil
	})
	if err != nil {
		return s.storeErr(ctx, "change password", err, ErrNotFound)
	}

	s.logger.Info(ctx, "password changed", "account_id", p.AccountID)
	return nil
}

func provided(v *string) (string, bool) {
	if v == nil {
		return "", false
	}
	t := strings.TrimSpace(*v)
	return t, t != ""
}

// UpdateProfile applies the provided fields and returns the new public
// profile. A new email must be well formed and not used by another account.
func (s *Service) UpdateProfile(ctx context.Context, p auth.Principal, in ProfileUpdate) (*models.Profile, error) {
	if p.AccountID == "" {
		return nil, ErrUnauthenticated
	}

	email, changeEmail := provided(in.Email)
	if changeEmail {
		email = s.normalizeEmail(email)
		if !emailPattern.MatchString(email) {
			return nil, validation("Please provide a valid email address")
		}

		other, err := s.getByEmail(ctx, email)
		switch {
		case err == nil && other.ID != p.AccountID:
			return nil, errEmailInUse
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return nil, s.storeErr(ctx, "update profile", err, nil)
		}
	}

	a, err := s.mutate(ctx, s.byID(p.AccountID), func(_ context.Context, a *models.Account) error {
		if v, ok := provided(in.Name); ok {
			a.Name = v
		}
		if changeEmail {
			a.Email = email
		}
		if v, ok := provided(in.Phone); ok {
			a.Phone = v
		}
		if v, ok := provided(in.Bio); ok {
			a.Bio = v
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, errEmailInUse
		}
		return nil, s.storeErr(ctx, "update profile", err, ErrNotFound)
	}

	profile := a.Profile()
	return &profile, nil
}

// AppendHistory records label at the end of the account's history.
func (s *Service) AppendHistory(ctx context.Context, p auth.Principal, label string) error {
	if p.AccountID == "" {
		return ErrUnauthenticated
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return validation("Label is required")
	}

	actx, cancel := s.bounded(ctx)
	defer cancel()
	err := s.accounts.AppendHistory(actx, p.AccountID, models.HistoryEntry{Label: label, CreatedAt: s.now().UTC()})
	if err != nil {
		return s.storeErr(ctx, "append history", err, ErrNotFound)
	}
	return nil
}

// GetProfile returns the caller's public profile including history.
func (s *Service) GetProfile(ctx context.Context, p auth.Principal) (*models.Profile, error) {
	if p.AccountID == "" {
		return nil, ErrUnauthenticated
	}

	a, err := s.getByID(ctx, p.AccountID)
	if err != nil {
		return nil, s.storeErr(ctx, "get profile", err, ErrNotFound)
	}

	profile := a.Profile()
	return &profile, nil
}
