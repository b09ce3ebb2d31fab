// Package challenge models the two verification secrets an account can be
// asked to prove: the email confirmation link and the password recovery code.
// Both share one issue/verify/consume contract and differ only in how the
// secret is produced, how long it lives and what consuming it does to the
// account.
package challenge

import (
	"errors"

	"github.com/dmitrijs2005/identityd/internal/server/models"
)

type Kind int

const (
	EmailLink Kind = iota + 1
	RecoveryCode
)

func (k Kind) String() string {
	switch k {
	case EmailLink:
		return "email_link"
	case RecoveryCode:
		return "recovery_code"
	default:
		return "unknown"
	}
}

var (
	ErrNotIssued = errors.New("challenge not issued")
	ErrMismatch  = errors.New("challenge mismatch")
	ErrExpired   = errors.New("challenge expired")
	ErrConsumed  = errors.New("challenge already consumed")
)

// Challenge mutates the account in memory only. Persisting the result is the
// caller's job so the change lands in a single compare-and-set write.
type Challenge interface {
	Kind() Kind
	// Issue creates a fresh secret for the account, replacing any earlier one.
	Issue(a *models.Account) (string, error)
	// Verify checks secret against the account and records a successful check.
	// The account is left unchanged on failure.
	Verify(a *models.Account, secret string) error
	// Consume applies the effect of a completed challenge.
	Consume(a *models.Account)
}
