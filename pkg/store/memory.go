package store

import (
	"context"
	"sort"
	"sync"
)

type zsetEntry struct {
	member string
	score  float64
}

// MemoryStore implements Store with in-process maps. It is the normative
// backend: operations never fail except for ErrNotFound on missing keys.
type MemoryStore struct {
	mu      sync.RWMutex
	strings map[string]string
	lists   map[string][]string
	zsets   map[string]map[string]float64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		strings: make(map[string]string),
		lists:   make(map[string][]string),
		zsets:   make(map[string]map[string]float64),
	}
}

func (ms *MemoryStore) Get(_ context.Context, key string) (string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	v, ok := ms.strings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (ms *MemoryStore) Set(_ context.Context, key, value string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.strings[key] = value
	return nil
}

func (ms *MemoryStore) LPush(_ context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	list := ms.lists[key]
	// LPUSH semantics: each value is prepended in turn, so the last argument
	// ends up at the head.
	for _, v := range values {
		list = append([]string{v}, list...)
	}
	ms.lists[key] = list
	return nil
}

func (ms *MemoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	list, ok := ms.lists[key]
	if !ok {
		return nil
	}

	lo, hi := normalizeRange(start, stop, int64(len(list)))
	if lo > hi {
		delete(ms.lists, key)
		return nil
	}
	ms.lists[key] = list[lo : hi+1]
	return nil
}

func (ms *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	list, ok := ms.lists[key]
	if !ok {
		return []string{}, nil
	}

	lo, hi := normalizeRange(start, stop, int64(len(list)))
	if lo > hi {
		return []string{}, nil
	}

	out := make([]string, hi-lo+1)
	copy(out, list[lo:hi+1])
	return out, nil
}

func (ms *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	zs, ok := ms.zsets[key]
	if !ok {
		zs = make(map[string]float64)
		ms.zsets[key] = zs
	}
	zs[member] = score
	return nil
}

func (ms *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return int64(len(ms.zsets[key])), nil
}

func (ms *MemoryStore) ZRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entries := ms.sortedEntries(key)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.score >= min && e.score <= max {
			out = append(out, e.member)
		}
	}
	return out, nil
}

func (ms *MemoryStore) ZRemRangeByRank(_ context.Context, key string, start, stop int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	zs, ok := ms.zsets[key]
	if !ok {
		return nil
	}

	entries := ms.sortedEntries(key)
	lo, hi := normalizeRange(start, stop, int64(len(entries)))
	if lo > hi {
		return nil
	}
	for _, e := range entries[lo : hi+1] {
		delete(zs, e.member)
	}
	if len(zs) == 0 {
		delete(ms.zsets, key)
	}
	return nil
}

func (ms *MemoryStore) Ping(_ context.Context) error { return nil }

func (ms *MemoryStore) Close() error { return nil }

// sortedEntries returns the zset entries ordered by ascending score. Callers
// must hold at least the read lock.
func (ms *MemoryStore) sortedEntries(key string) []zsetEntry {
	zs := ms.zsets[key]
	entries := make([]zsetEntry, 0, len(zs))
	for m, s := range zs {
		entries = append(entries, zsetEntry{member: m, score: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score == entries[j].score {
			return entries[i].member < entries[j].member
		}
		return entries[i].score < entries[j].score
	})
	return entries
}

// normalizeRange resolves an inclusive Redis-style range against a length,
// mapping negative indices from the tail and clamping to bounds.
func normalizeRange(start, stop, length int64) (int64, int64) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	return start, stop
}
