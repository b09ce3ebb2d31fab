package challenge

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/dmitrijs2005/identityd/internal/server/models"
)

const (
	DefaultCodeDigits = 6
	DefaultCodeTTL    = 10 * time.Minute
)

// Recovery issues numeric one-time codes stored on the account's reset
// fields. Only one code is outstanding per account.
type Recovery struct {
	digits int
	ttl    time.Duration
	now    func() time.Time
	random func(n int) (string, error)
}

func NewRecovery(digits int, ttl time.Duration, now func() time.Time) *Recovery {
	if digits < 6 || digits > 10 {
		digits = DefaultCodeDigits
	}
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Recovery{digits: digits, ttl: ttl, now: now, random: common.RandomDigits}
}

func (r *Recovery) Kind() Kind { return RecoveryCode }

// TTL is how long an issued code stays valid.
func (r *Recovery) TTL() time.Duration { return r.ttl }

func (r *Recovery) Issue(a *models.Account) (string, error) {
	code, err := r.random(r.digits)
	if err != nil {
		return "", fmt.Errorf("generate recovery code: %w", err)
	}

	expires := r.now().Add(r.ttl)
	a.ResetOTP = code
	a.ResetOTPExpires = &expires
	a.ResetOTPVerified = false
	return code, nil
}

func (r *Recovery) check(a *models.Account, candidate string) error {
	if a.ResetOTP == "" || a.ResetOTPExpires == nil {
		return ErrNotIssued
	}
	if !r.now().Before(*a.ResetOTPExpires) {
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(a.ResetOTP), []byte(candidate)) != 1 {
		return ErrMismatch
	}
	return nil
}

// Verify marks the code confirmed but keeps it; it is cleared only when the
// password reset completes or a new code replaces it.
func (r *Recovery) Verify(a *models.Account, candidate string) error {
	if err := r.check(a, candidate); err != nil {
		return err
	}
	a.ResetOTPVerified = true
	return nil
}

// Confirmed reports whether the account holds a verified, unexpired code.
func (r *Recovery) Confirmed(a *models.Account) bool {
	return a.ResetOTPVerified && r.check(a, a.ResetOTP) == nil
}

func (r *Recovery) Consume(a *models.Account) {
	a.ResetOTP = ""
	a.ResetOTPExpires = nil
	a.ResetOTPVerified = false
}
