package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/identityd/internal/common"
	"github.com/dmitrijs2005/identityd/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory. It has the same
// uniqueness and compare-and-set semantics as the SQL backends and is used by
// tests and memory:// DSNs.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*models.Account),
		byEmail: make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc := a.Clone()
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	now := r.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	acc.Version = 1

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[acc.Email]; taken {
		return nil, common.ErrorAlreadyExists
	}
	if _, taken := r.byID[acc.ID]; taken {
		return nil, common.ErrorAlreadyExists
	}

	r.byID[acc.ID] = acc
	r.byEmail[acc.Email] = acc.ID
	return acc.Clone(), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, a *models.Account) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[a.ID]
	if !ok || cur.Version != a.Version {
		return nil, common.ErrVersionConflict
	}
	if a.Email != cur.Email {
		if _, taken := r.byEmail[a.Email]; taken {
			return nil, common.ErrorAlreadyExists
		}
	}

	next := a.Clone()
	next.History = cur.History
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.now()
	next.Version = cur.Version + 1

	if next.Email != cur.Email {
		delete(r.byEmail, cur.Email)
		r.byEmail[next.Email] = next.ID
	}
	r.byID[next.ID] = next
	return next.Clone(), nil
}

func (r *MemoryRepository) AppendHistory(ctx context.Context, accountID string, entry models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[accountID]
	if !ok {
		return common.ErrorNotFound
	}
	// Copy-on-write so clones handed out earlier keep their own slice.
	history := make([]models.HistoryEntry, len(cur.History), len(cur.History)+1)
	copy(history, cur.History)
	cur.History = append(history, entry)
	return nil
}

// Ping reports whether the store is usable.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}
