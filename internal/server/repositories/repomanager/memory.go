package repomanager

import (
	"context"

	"github.com/dmitrijs2005/identityd/internal/server/repositories/accounts"
)

// MemoryRepositoryManager keeps everything in process memory. Data is lost
// on restart.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{accounts: accounts.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Accounts() accounts.Repository { return m.accounts }

func (m *MemoryRepositoryManager) Ping(ctx context.Context) error { return m.accounts.Ping(ctx) }

func (m *MemoryRepositoryManager) Close() error { return nil }
