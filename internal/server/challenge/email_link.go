package challenge

import (
	"github.com/dmitrijs2005/identityd/internal/server/models"
)

// VerificationTokens is the part of auth.TokenIssuer the email link needs.
type VerificationTokens interface {
	IssueVerification(accountID string) (string, error)
	VerifyVerification(token string) (string, error)
}

// Link confirms ownership of an email address with a signed token. The token
// is stateless; replay is stopped by the account already being verified.
type Link struct {
	tokens VerificationTokens
}

func NewLink(tokens VerificationTokens) *Link {
	return &Link{tokens: tokens}
}

func (l *Link) Kind() Kind { return EmailLink }

func (l *Link) Issue(a *models.Account) (string, error) {
	return l.tokens.IssueVerification(a.ID)
}

// Subject returns the account id a token was issued for. Errors come from
// the token issuer unchanged.
func (l *Link) Subject(token string) (string, error) {
	return l.tokens.VerifyVerification(token)
}

func (l *Link) Verify(a *models.Account, token string) error {
	id, err := l.tokens.VerifyVerification(token)
	if err != nil {
		return err
	}
	if id != a.ID {
		return ErrMismatch
	}
	if a.IsVerified {
		return ErrConsumed
	}
	return nil
}

func (l *Link) Consume(a *models.Account) {
	a.IsVerified = true
}
