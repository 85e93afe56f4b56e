package flow

import (
	"context"
	"sync"

	"lunar-card/internal/model"
)

// MemoryBankStore is an in-process BankStore.
type MemoryBankStore struct {
	mu    sync.RWMutex
	banks map[string]model.BankInfo
}

// NewMemoryBankStore creates an empty MemoryBankStore.
func NewMemoryBankStore() *MemoryBankStore {
	return &MemoryBankStore{banks: make(map[string]model.BankInfo)}
}

// LoadBank implements BankStore. Unknown profiles yield nil.
func (m *MemoryBankStore) LoadBank(_ context.Context, profileKey string) (*model.BankInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.banks[profileKey]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// SaveBank implements BankStore.
func (m *MemoryBankStore) SaveBank(_ context.Context, profileKey string, info model.BankInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banks[profileKey] = info
	return nil
}
