package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/dmitrijs2005/identityd/internal/server/auth"
	"github.com/dmitrijs2005/identityd/internal/server/challenge"
	"github.com/dmitrijs2005/identityd/internal/server/models"
	"github.com/dmitrijs2005/identityd/internal/server/notify"
	"github.com/dmitrijs2005/identityd/internal/server/repositories/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sent struct {
	to     notify.Recipient
	secret string
}

type fakeGateway struct {
	mu            sync.Mutex
	verifications []sent
	codes         []sent
	err           error
	block         bool
}

func (g *fakeGateway) SendVerification(ctx context.Context, to notify.Recipient, token string) error {
	if g.block {
		<-ctx.Done()
		return ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.verifications = append(g.verifications, sent{to: to, secret: token})
	return nil
}

func (g *fakeGateway) SendRecoveryCode(ctx context.Context, to notify.Recipient, code string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.codes = append(g.codes, sent{to: to, secret: code})
	return nil
}

func (g *fakeGateway) lastToken(t *testing.T) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.verifications, "no verification sent")
	return g.verifications[len(g.verifications)-1].secret
}

func (g *fakeGateway) lastCode(t *testing.T) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.codes, "no recovery code sent")
	return g.codes[len(g.codes)-1].secret
}

type fixture struct {
	svc     *Service
	repo    *accounts.MemoryRepository
	gateway *fakeGateway
	clock   *fakeClock
	tokens  *auth.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := accounts.NewMemoryRepository()
	gateway := &fakeGateway{}
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		SessionSecret:      []byte("session-secret-session-secret-000"),
		VerificationSecret: []byte("verification-secret-verification-0"),
		SessionTTL:         24 * time.Hour,
		VerificationTTL:    24 * time.Hour,
		Now:                clock.Now,
	})

	svc := NewService(Deps{
		Accounts: repo,
		Hasher:   auth.NewBcrypt(bcrypt.MinCost),
		Tokens:   tokens,
		Recovery: challenge.NewRecovery(6, 10*time.Minute, clock.Now),
		Notifier: gateway,
		Now:      clock.Now,
	}, Options{OperationTimeout: 2 * time.Second, EmailCaseInsensitive: true})

	return &fixture{svc: svc, repo: repo, gateway: gateway, clock: clock, tokens: tokens}
}

func (f *fixture) register(t *testing.T, name, email, password string) *AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return res
}

func (f *fixture) registerVerified(t *testing.T, name, email, password string) *AuthResult {
	t.Helper()
	res := f.register(t, name, email, password)
	require.NoError(t, f.svc.VerifyEmail(context.Background(), f.gateway.lastToken(t)))
	return res
}

func (f *fixture) account(t *testing.T, email string) *models.Account {
	t.Helper()
	a, err := f.repo.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}

func TestAliceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@x.com", Password: "Secret123!"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.False(t, res.Profile.IsVerified)
	assert.False(t, f.account(t, "alice@x.com").IsVerified)
	require.Len(t, f.gateway.verifications, 1)
	assert.Equal(t, "alice@x.com", f.gateway.verifications[0].to.Email)

	require.NoError(t, f.svc.VerifyEmail(ctx, f.gateway.lastToken(t)))
	assert.True(t, f.account(t, "alice@x.com").IsVerified)

	login, err := f.svc.Login(ctx, "alice@x.com", "Secret123!")
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@x.com"))
	code := f.gateway.lastCode(t)
	assert.Len(t, code, 6)
	assert.True(t, common.IsDigits(code))

	ok, err := f.svc.VerifyOTP(ctx, "alice@x.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.svc.ResetPassword(ctx, "alice@x.com", "NewSecret456!"))

	_, err = f.svc.Login(ctx, "alice@x.com", "Secret123!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	login, err = f.svc.Login(ctx, "alice@x.com", "NewSecret456!")
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	a := f.account(t, "alice@x.com")
	assert.Empty(t, a.ResetOTP)
	assert.Nil(t, a.ResetOTPExpires)
	assert.False(t, a.ResetOTPVerified)
}

func TestRegister_SessionTokenIdentifiesAccount(t *testing.T) {
	f := newFixture(t)

	res := f.register(t, "Alice", "Alice@X.com", "pw")
	p, err := f.tokens.VerifySession(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Profile.ID, p.AccountID)
	assert.Equal(t, "alice@x.com", p.Email, "email stored lower-cased")
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []RegisterInput{
		{Email: "a@x.com", Password: "p"},
		{Name: "A", Password: "p"},
		{Name: "A", Email: "a@x.com"},
		{Name: "   ", Email: "a@x.com", Password: "p"},
		{Name: "A", Email: "not-an-email", Password: "p"},
		{Name: "A", Email: "a@x", Password: "p"},
		{Name: "A", Email: "a b@x.com", Password: "p"},
	}
	for _, in := range tests {
		_, err := f.svc.Register(context.Background(), in)
		assert.ErrorIs(t, err, ErrValidation, "%+v", in)
		assert.Equal(t, KindValidation, KindOf(err))
	}
	assert.Empty(t, f.gateway.verifications)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Alice", "alice@x.com", "pw")

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Other", Email: "ALICE@x.com", Password: "pw2"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: "race@x.com", Password: "pw"})
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateEmail):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestRegister_DispatchFailureKeepsAccount(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = errors.New("provider down")

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@x.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrDispatchFailure)
	assert.Equal(t, KindDispatchFailure, KindOf(err))
	assert.Equal(t, ErrDispatchFailure.Message, PublicMessage(err), "provider detail stays internal")

	a := f.account(t, "a@x.com")
	assert.False(t, a.IsVerified)
}

func TestRegister_DispatchTimeout(t *testing.T) {
	f := newFixture(t)
	f.svc.opts.OperationTimeout = 20 * time.Millisecond
	f.gateway.block = true

	start := time.Now()
	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@x.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrDispatchFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLogin_UnverifiedResendsAndFails(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Bob", "bob@x.com", "pw")
	require.Len(t, f.gateway.verifications, 1)

	_, err := f.svc.Login(context.Background(), "bob@x.com", "pw")
	assert.ErrorIs(t, err, ErrUnverifiedAccount)
	assert.Len(t, f.gateway.verifications, 2, "courtesy re-send")

	// the re-sent link works
	require.NoError(t, f.svc.VerifyEmail(context.Background(), f.gateway.lastToken(t)))
	_, err = f.svc.Login(context.Background(), "bob@x.com", "pw")
	assert.NoError(t, err)
}

func TestLogin_UnverifiedDispatchFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Bob", "bob@x.com", "pw")
	f.gateway.err = errors.New("provider down")

	_, err := f.svc.Login(context.Background(), "bob@x.com", "pw")
	assert.ErrorIs(t, err, ErrDispatchFailure)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "Carol", "carol@x.com", "right")

	_, errWrong := f.svc.Login(context.Background(), "carol@x.com", "wrong")
	_, errUnknown := f.svc.Login(context.Background(), "nobody@x.com", "right")

	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, PublicMessage(errWrong), PublicMessage(errUnknown))

	_, err := f.svc.Login(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogin_EmailCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "Dan", "dan@x.com", "pw")

	_, err := f.svc.Login(context.Background(), "  DAN@X.COM ", "pw")
	assert.NoError(t, err)
}

func TestVerifyEmail_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Eve", "eve@x.com", "pw")
	token := f.gateway.lastToken(t)

	require.NoError(t, f.svc.VerifyEmail(context.Background(), token))
	err := f.svc.VerifyEmail(context.Background(), token)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
	assert.True(t, f.account(t, "eve@x.com").IsVerified)
}

func TestVerifyEmail_InvalidTokens(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Eve", "eve@x.com", "pw")
	good := f.gateway.lastToken(t)

	forger := auth.NewTokenIssuer(auth.TokenConfig{
		SessionSecret:      []byte("other-session-secret-000000000000"),
		VerificationSecret: []byte("other-verification-secret-0000000"),
		SessionTTL:         time.Hour,
		VerificationTTL:    time.Hour,
		Now:                f.clock.Now,
	})
	forged, err := forger.IssueVerification(f.account(t, "eve@x.com").ID)
	require.NoError(t, err)

	session, err := f.tokens.IssueSession(f.account(t, "eve@x.com").ID, "eve@x.com")
	require.NoError(t, err)

	for name, tok := range map[string]string{"forged": forged, "session token": session, "garbage": "abc.def.ghi"} {
		err := f.svc.VerifyEmail(context.Background(), tok)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken, name)
	}

	f.clock.Advance(25 * time.Hour)
	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), good), ErrInvalidOrExpiredToken)

	assert.False(t, f.account(t, "eve@x.com").IsVerified)
	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), ""), ErrValidation)
}

func TestVerifyEmail_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	tok, err := f.tokens.IssueVerification("no-such-account")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), tok), ErrNotFound)
}

func TestRequestPasswordReset_UnknownEmailSucceedsSilently(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@x.com"))
	assert.Empty(t, f.gateway.codes)

	assert.ErrorIs(t, f.svc.RequestPasswordReset(context.Background(), " "), ErrValidation)
}

func TestRequestPasswordReset_DispatchFailure(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "Al", "al@x.com", "pw")
	f.gateway.err = errors.New("down")

	assert.ErrorIs(t, f.svc.RequestPasswordReset(context.Background(), "al@x.com"), ErrDispatchFailure)
}

func TestVerifyOTP_ExpiresAndLeavesStateOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "Al", "al@x.com", "pw")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "al@x.com"))
	code := f.gateway.lastCode(t)
	before := f.account(t, "al@x.com")

	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}
	ok, err := f.svc.VerifyOTP(ctx, "al@x.com", wrong)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before.Version, f.account(t, "al@x.com").Version, "no write on failure")

	f.clock.Advance(10 * time.Minute)
	ok, err = f.svc.VerifyOTP(ctx, "al@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok, "expired code")
	assert.False(t, f.account(t, "al@x.com").ResetOTPVerified)

	ok, err = f.svc.VerifyOTP(ctx, "ghost@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.VerifyOTP(ctx, "al@x.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRequestPasswordReset_SecondRequestInvalidatesFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "Al", "al@x.com", "pw")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "al@x.com"))
	first := f.gateway.lastCode(t)
	ok, err := f.svc.VerifyOTP(ctx, "al@x.com", first)
	require.NoError(t, err)
	require.True(t, ok)

	for {
		require.NoError(t, f.svc.RequestPasswordReset(ctx, "al@x.com"))
		if f.gateway.lastCode(t) != first {
			break
		}
	}

	ok, err = f.svc.VerifyOTP(ctx, "al@x.com", first)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "al@x.com", "new"), ErrResetNotConfirmed,
		"confirmation of the first code does not carry over")
}

func TestResetPassword_RequiresConfirmedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "Al", "al@x.com", "pw")

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "al@x.com", "new"), ErrResetNotConfirmed, "no code issued")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "al@x.com"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "al@x.com", "new"), ErrResetNotConfirmed, "code not verified")

	ok, err := f.svc.VerifyOTP(ctx, "al@x.com", f.gateway.lastCode(t))
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.Advance(11 * time.Minute)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "al@x.com", "new"), ErrResetNotConfirmed, "confirmed but expired")

	_, err = f.svc.Login(ctx, "al@x.com", "pw")
	assert.NoError(t, err, "password unchanged")

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ghost@x.com", "new"), ErrResetNotConfirmed)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "al@x.com", ""), ErrValidation)
}

func TestResetPassword_CodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "Al", "al@x.com", "pw")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "al@x.com"))
	code := f.gateway.lastCode(t)
	ok, err := f.svc.VerifyOTP(ctx, "al@x.com", code)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.svc.ResetPassword(ctx, "al@x.com", "new1"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "al@x.com", "new2"), ErrResetNotConfirmed)

	ok, err = f.svc.VerifyOTP(ctx, "al@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.registerVerified(t, "Al", "al@x.com", "old")
	p := auth.Principal{AccountID: res.Profile.ID, Email: "al@x.com"}

	err := f.svc.ChangePassword(ctx, p, "wrong", "new")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Current password is incorrect", PublicMessage(err))
	_, err = f.svc.Login(ctx, "al@x.com", "old")
	require.NoError(t, err, "hash untouched after wrong current password")

	require.NoError(t, f.svc.ChangePassword(ctx, p, "old", "new"))
	_, err = f.svc.Login(ctx, "al@x.com", "old")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "al@x.com", "new")
	assert.NoError(t, err)

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, p, "", "x"), ErrValidation)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, auth.Principal{}, "a", "b"), ErrUnauthenticated)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, auth.Principal{AccountID: "gone"}, "a", "b"), ErrNotFound)
}

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.registerVerified(t, "Al", "al@x.com", "pw")
	f.registerVerified(t, "Bo", "bo@x.com", "pw")
	p := auth.Principal{AccountID: res.Profile.ID}

	got, err := f.svc.UpdateProfile(ctx, p, ProfileUpdate{Phone: strPtr("555-1234"), Bio: strPtr("hi"), Name: strPtr("  ")})
	require.NoError(t, err)
	assert.Equal(t, "Al", got.Name, "blank fields ignored")
	assert.Equal(t, "555-1234", got.Phone)
	assert.Equal(t, "hi", got.Bio)

	_, err = f.svc.UpdateProfile(ctx, p, ProfileUpdate{Email: strPtr("BO@x.com")})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, "Email already in use", PublicMessage(err))

	_, err = f.svc.UpdateProfile(ctx, p, ProfileUpdate{Email: strPtr("nope")})
	assert.ErrorIs(t, err, ErrValidation)

	got, err = f.svc.UpdateProfile(ctx, p, ProfileUpdate{Email: strPtr("al@x.com"), Name: strPtr("Alan")})
	require.NoError(t, err, "own email is not a duplicate")
	assert.Equal(t, "Alan", got.Name)

	got, err = f.svc.UpdateProfile(ctx, p, ProfileUpdate{Email: strPtr("Alan@X.com")})
	require.NoError(t, err)
	assert.Equal(t, "alan@x.com", got.Email)
	_, err = f.svc.Login(ctx, "alan@x.com", "pw")
	assert.NoError(t, err)

	_, err = f.svc.UpdateProfile(ctx, auth.Principal{}, ProfileUpdate{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAppendHistoryAndGetProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.registerVerified(t, "Al", "al@x.com", "pw")
	p := auth.Principal{AccountID: res.Profile.ID}

	require.NoError(t, f.svc.AppendHistory(ctx, p, "lecture.mp3"))
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.AppendHistory(ctx, p, "notes.png"))
	assert.ErrorIs(t, f.svc.AppendHistory(ctx, p, "  "), ErrValidation)
	assert.ErrorIs(t, f.svc.AppendHistory(ctx, auth.Principal{AccountID: "gone"}, "x"), ErrNotFound)
	assert.ErrorIs(t, f.svc.AppendHistory(ctx, auth.Principal{}, "x"), ErrUnauthenticated)

	profile, err := f.svc.GetProfile(ctx, p)
	require.NoError(t, err)
	require.Len(t, profile.History, 2)
	assert.Equal(t, "lecture.mp3", profile.History[0].Label)
	assert.Equal(t, "notes.png", profile.History[1].Label)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC), profile.History[1].CreatedAt)

	_, err = f.svc.GetProfile(ctx, auth.Principal{AccountID: "gone"})
	assert.ErrorIs(t, err, ErrNotFound)
}

// conflictingRepo fails the first n updates with a version conflict.
type conflictingRepo struct {
	accounts.Repository
	mu        sync.Mutex
	conflicts int
	updates   int
}

func (r *conflictingRepo) Update(ctx context.Context, a *models.Account) (*models.Account, error) {
	r.mu.Lock()
	r.updates++
	fail := r.conflicts > 0
	if fail {
		r.conflicts--
	}
	r.mu.Unlock()
	if fail {
		return nil, common.ErrVersionConflict
	}
	return r.Repository.Update(ctx, a)
}

func TestMutate_RetriesVersionConflicts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "pw")

	repo := &conflictingRepo{Repository: f.repo, conflicts: 2}
	f.svc.accounts = repo

	require.NoError(t, f.svc.VerifyEmail(context.Background(), f.gateway.lastToken(t)))
	assert.Equal(t, 3, repo.updates)
	assert.True(t, f.account(t, "al@x.com").IsVerified)
}

func TestMutate_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Al", "al@x.com", "pw")

	repo := &conflictingRepo{Repository: f.repo, conflicts: 100}
	f.svc.accounts = repo

	err := f.svc.VerifyEmail(context.Background(), f.gateway.lastToken(t))
	assert.ErrorIs(t, err, ErrServer)
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	assert.Equal(t, maxUpdateAttempts, repo.updates)
}

func TestConcurrentOTPIssuanceStaysConsistent(t *testing.T) {
	f := newFixture(t)
	f.registerVerified(t, "Al", "al@x.com", "pw")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.svc.RequestPasswordReset(context.Background(), "al@x.com")
		}()
	}
	wg.Wait()

	a := f.account(t, "al@x.com")
	require.NotEmpty(t, a.ResetOTP)
	require.NotNil(t, a.ResetOTPExpires)
	assert.False(t, a.ResetOTPVerified)

	ok, err := f.svc.VerifyOTP(context.Background(), "al@x.com", a.ResetOTP)
	require.NoError(t, err)
	assert.True(t, ok, "stored code is one that was issued")
}
