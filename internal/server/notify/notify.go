// Package notify renders account emails and hands them to a delivery
// backend. The identity service only sees Gateway.
package notify

import (
	"context"
	"time"
)

// Recipient identifies who a message is addressed to.
type Recipient struct {
	Email string
	Name  string
}

// Gateway is the outbound notification capability of the identity service.
type Gateway interface {
	SendVerification(ctx context.Context, to Recipient, token string) error
	SendRecoveryCode(ctx context.Context, to Recipient, code string, ttl time.Duration) error
}

const (
	KindVerification = "verification"
	KindRecoveryCode = "recovery_code"
)

// Message is a rendered email ready for delivery.
type Message struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
