package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lunar-card/internal/apperr"
	"lunar-card/internal/model"
)

// ErrRecordNotFound is returned by MemoryStore.Delete for unknown ids.
var ErrRecordNotFound = fmt.Errorf("%w: record", apperr.ErrNotFound)

// MemoryStore is an in-process Store used when no database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	views    map[string]*model.View
	wishes   map[string]*model.Wish
	fortunes map[string]*model.Fortune
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		views:    make(map[string]*model.View),
		wishes:   make(map[string]*model.Wish),
		fortunes: make(map[string]*model.Fortune),
	}
}

// CreateView implements Store.
func (m *MemoryStore) CreateView(_ context.Context, v *model.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *v
	m.views[v.ID] = &cp
	return nil
}

// CloseView implements Store.
func (m *MemoryStore) CloseView(_ context.Context, id string, endedAt time.Time, durationSec int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[id]
	if !ok {
		return ErrRecordNotFound
	}
	v.EndedAt = &endedAt
	v.DurationSec = durationSec
	return nil
}

// CreateWish implements Store.
func (m *MemoryStore) CreateWish(_ context.Context, w *model.Wish) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.wishes[w.ID] = &cp
	return nil
}

// CreateFortune implements Store.
func (m *MemoryStore) CreateFortune(_ context.Context, f *model.Fortune) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *f
	m.fortunes[f.ID] = &cp
	return nil
}

// ListViews implements Store.
func (m *MemoryStore) ListViews(_ context.Context, ownerKey string, limit int) ([]*model.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.View, 0, len(m.views))
	for _, v := range m.views {
		if v.OwnerKey == ownerKey {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return head(out, limit), nil
}

// ListWishes implements Store.
func (m *MemoryStore) ListWishes(_ context.Context, ownerKey string, limit int) ([]*model.Wish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Wish, 0, len(m.wishes))
	for _, w := range m.wishes {
		if w.OwnerKey == ownerKey {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return head(out, limit), nil
}

// ListFortunes implements Store.
func (m *MemoryStore) ListFortunes(_ context.Context, ownerKey string, limit int) ([]*model.Fortune, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Fortune, 0, len(m.fortunes))
	for _, f := range m.fortunes {
		if f.OwnerKey == ownerKey {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return head(out, limit), nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, kind model.RecordKind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found bool
	switch kind {
	case model.KindViews:
		_, found = m.views[id]
		delete(m.views, id)
	case model.KindWishes:
		_, found = m.wishes[id]
		delete(m.wishes, id)
	case model.KindFortunes:
		_, found = m.fortunes[id]
		delete(m.fortunes, id)
	}
	if !found {
		return ErrRecordNotFound
	}
	return nil
}

func head[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
