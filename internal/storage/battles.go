package storage

import (
	"errors"
	"sort"
	"sync"

	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

var (
	ErrBattleNotFound = errors.New("battle not found")
	ErrBattleExists   = errors.New("battle already exists")
)

type battleEntry struct {
	mu      sync.Mutex
	battle  *game.Battle
	removed bool
}

// BattleStore holds live battles in memory. Every access to a battle goes
// through WithBattle, which runs under that battle's own lock, so work on
// one battle is serialized while different battles proceed in parallel.
type BattleStore struct {
	mu      sync.RWMutex
	entries map[string]*battleEntry
}

func NewBattleStore() *BattleStore {
	return &BattleStore{entries: map[string]*battleEntry{}}
}

func (s *BattleStore) Create(b *game.Battle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[b.ID]; ok {
		return ErrBattleExists
	}
	s.entries[b.ID] = &battleEntry{battle: b}
	return nil
}

func (s *BattleStore) entry(id string) (*battleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrBattleNotFound
	}
	return e, nil
}

// WithBattle runs fn with exclusive access to battle id. The error from fn is
// returned unchanged.
func (s *BattleStore) WithBattle(id string, fn func(b *game.Battle) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrBattleNotFound
	}
	return fn(e.battle)
}

// Remove deletes battle id after any in-flight WithBattle call finishes.
func (s *BattleStore) Remove(id string) (*game.Battle, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrBattleNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = true
	return e.battle, nil
}

// IDs returns every stored battle id in sorted order.
func (s *BattleStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *BattleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
