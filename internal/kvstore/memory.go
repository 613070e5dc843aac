package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps items in process memory. Used by tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	items map[Key]map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Key]map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key Key) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Item{Key: key, Attrs: copyAttrs(attrs)}, nil
}

func (s *MemoryStore) Put(ctx context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.Key] = copyAttrs(item.Attrs)
	return nil
}

func (s *MemoryStore) ConditionalUpdate(ctx context.Context, key Key, set, cond map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, ok := s.items[key]
	if !ok || !matches(attrs, cond) {
		return ErrConditionFailed
	}
	s.items[key] = apply(attrs, set)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q QueryInput) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Item
	for key, attrs := range s.items {
		if attrs[AttrIndexPK] != q.Partition {
			continue
		}
		if !strings.HasPrefix(attrs[AttrIndexSK], q.SortPrefix) {
			continue
		}
		out = append(out, Item{Key: key, Attrs: copyAttrs(attrs)})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Attrs[AttrIndexSK], out[j].Attrs[AttrIndexSK]
		if q.Ascending {
			return a < b
		}
		return a > b
	})

	if limit := limitOrDefault(q.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
