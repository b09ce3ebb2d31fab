// Package accounts stores Account records. Every backend enforces email
// uniqueness itself and guards updates with an optimistic version check, so
// callers never need a separate existence check or in-process lock.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/identityd/internal/server/models"
)

// Repository is the durable account store.
//
// Errors: common.ErrorNotFound for unknown ids or emails,
// common.ErrorAlreadyExists when an email is taken, and
// common.ErrVersionConflict when Update loses a race.
type Repository interface {
	// Create inserts a new account with version 1. An empty ID is filled in.
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	// Update writes every mutable column of a as one compare-and-set against
	// a.Version and returns the stored record with the bumped version.
	// History is not touched.
	Update(ctx context.Context, a *models.Account) (*models.Account, error)
	// AppendHistory adds one entry to the end of the account's history.
	AppendHistory(ctx context.Context, accountID string, entry models.HistoryEntry) error
}
