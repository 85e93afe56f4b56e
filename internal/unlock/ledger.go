// Package unlock gates the minigame behind a durable per-viewer flag.
package unlock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"lunar-card/internal/apperr"
	"lunar-card/internal/identity"
	"lunar-card/internal/model"
)

// ErrLocked is returned when a viewer tries to enter the minigame before unlocking it.
var ErrLocked = fmt.Errorf("%w: send a wish to unlock the minigame first", apperr.ErrPermission)

// Store persists unlock flags. Flags are never removed.
type Store interface {
	IsUnlocked(ctx context.Context, viewerKey string) (bool, error)
	SetUnlocked(ctx context.Context, viewerKey string) error
}

// Ledger answers unlock questions for viewers.
type Ledger struct {
	store   Store
	matcher *identity.Matcher
}

// NewLedger creates a Ledger over store.
func NewLedger(store Store, matcher *identity.Matcher) *Ledger {
	return &Ledger{store: store, matcher: matcher}
}

// IsUnlocked reports whether a flag exists for viewerKey.
func (l *Ledger) IsUnlocked(ctx context.Context, viewerKey string) (bool, error) {
	if strings.TrimSpace(viewerKey) == "" {
		return false, nil
	}
	ok, err := l.store.IsUnlocked(ctx, viewerKey)
	if err != nil {
		return false, fmt.Errorf("failed to read unlock flag: %w", err)
	}
	return ok, nil
}

// Grant sets the flag for viewerKey. Granting twice is a no-op.
func (l *Ledger) Grant(ctx context.Context, viewerKey string) error {
	if strings.TrimSpace(viewerKey) == "" {
		return nil
	}
	ok, err := l.IsUnlocked(ctx, viewerKey)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := l.store.SetUnlocked(ctx, viewerKey); err != nil {
		return fmt.Errorf("failed to set unlock flag: %w", err)
	}
	return nil
}

// CanEnterMinigame reports whether viewer may open the minigame: owners and
// the exempt identity always may, everyone else once unlocked.
// There is no limit on how many times an allowed viewer enters.
func (l *Ledger) CanEnterMinigame(ctx context.Context, viewer *model.Profile) (bool, error) {
	if viewer == nil {
		return false, nil
	}
	if l.matcher.CanRepeat(viewer) {
		return true, nil
	}
	return l.IsUnlocked(ctx, viewer.Key)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

// IsUnlocked implements Store.
func (m *MemoryStore) IsUnlocked(_ context.Context, viewerKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[viewerKey]
	return ok, nil
}

// SetUnlocked implements Store.
func (m *MemoryStore) SetUnlocked(_ context.Context, viewerKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[viewerKey] = struct{}{}
	return nil
}
