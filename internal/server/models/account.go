// Package models holds the persisted identity record and its public views.
package models

import "time"

// HistoryEntry is one append-only record in an account's history.
type HistoryEntry struct {
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

// Account is the sole persisted entity of the identity service.
//
// ResetOTP, ResetOTPExpires and ResetOTPVerified describe one in-progress
// password reset and are always set or cleared together.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	Phone        string
	Bio          string
	IsVerified   bool

	ResetOTP         string
	ResetOTPExpires  *time.Time
	ResetOTPVerified bool

	History []HistoryEntry

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is bumped by every successful update and guards
	// compare-and-set writes.
	Version int64
}

// Clone returns a deep copy so callers can mutate without aliasing stored
// state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.ResetOTPExpires != nil {
		exp := *a.ResetOTPExpires
		c.ResetOTPExpires = &exp
	}
	if a.History != nil {
		c.History = append([]HistoryEntry(nil), a.History...)
	}
	return &c
}

// Profile is the public view of an account. It never carries credentials or
// reset state.
type Profile struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Phone      string         `json:"phone,omitempty"`
	Bio        string         `json:"bio,omitempty"`
	IsVerified bool           `json:"isVerified"`
	History    []HistoryEntry `json:"history"`
}

func (a *Account) Profile() Profile {
	history := make([]HistoryEntry, len(a.History))
	copy(history, a.History)
	return Profile{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Phone:      a.Phone,
		Bio:        a.Bio,
		IsVerified: a.IsVerified,
		History:    history,
	}
}
