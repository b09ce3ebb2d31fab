package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AudienceSession      = "session"
	AudienceVerification = "email-verification"
)

// Principal is the authenticated caller recovered from a session token.
type Principal struct {
	AccountID string
	Email     string
}

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
}

// VerificationClaims is the payload of an email verification token.
type VerificationClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId"`
}

type TokenConfig struct {
	SessionSecret      []byte
	VerificationSecret []byte
	SessionTTL         time.Duration
	VerificationTTL    time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// TokenIssuer signs and checks the two token kinds. Each kind has its own
// secret and audience, so a token of one kind never validates as the other.
type TokenIssuer struct {
	cfg TokenConfig
}

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenIssuer{cfg: cfg}
}

func (i *TokenIssuer) registered(subject, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.cfg.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *TokenIssuer) IssueSession(accountID, email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: i.registered(accountID, AudienceSession, i.cfg.SessionTTL),
		AccountID:        accountID,
		Email:            email,
	})

	s, err := token.SignedString(i.cfg.SessionSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return s, nil
}

func (i *TokenIssuer) IssueVerification(accountID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, VerificationClaims{
		RegisteredClaims: i.registered(accountID, AudienceVerification, i.cfg.VerificationTTL),
		AccountID:        accountID,
	})

	s, err := token.SignedString(i.cfg.VerificationSecret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return s, nil
}

// VerifySession returns the principal of a valid session token. Any failure
// yields common.ErrInvalidToken; expiry additionally matches
// common.ErrTokenExpired.
func (i *TokenIssuer) VerifySession(tokenString string) (Principal, error) {
	claims := &SessionClaims{}
	if err := i.parse(tokenString, claims, i.cfg.SessionSecret, AudienceSession); err != nil {
		return Principal{}, err
	}
	if claims.AccountID == "" {
		return Principal{}, common.ErrInvalidToken
	}
	return Principal{AccountID: claims.AccountID, Email: claims.Email}, nil
}

// VerifyVerification returns the account id carried by a valid verification
// token.
func (i *TokenIssuer) VerifyVerification(tokenString string) (string, error) {
	claims := &VerificationClaims{}
	if err := i.parse(tokenString, claims, i.cfg.VerificationSecret, AudienceVerification); err != nil {
		return "", err
	}
	if claims.AccountID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.AccountID, nil
}

func (i *TokenIssuer) parse(tokenString string, claims jwt.Claims, secret []byte, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.cfg.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return common.ErrInvalidToken
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}
	return nil
}
