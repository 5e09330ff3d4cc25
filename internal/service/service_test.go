package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/auth"
	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/config"
	"github.com/CriminalTalent/battle-system-sub001/internal/dice"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/keys"
	"github.com/CriminalTalent/battle-system-sub001/internal/storage"
	"github.com/CriminalTalent/battle-system-sub001/internal/timers"
)

type published struct {
	battleID string
	kind     broadcast.Kind
	payload  interface{}
}

type mockPublisher struct {
	mu      sync.Mutex
	events  []published
	dropped []string
}

func (p *mockPublisher) Publish(battleID string, kind broadcast.Kind, payload interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{battleID, kind, payload})
	return true
}

func (p *mockPublisher) Drop(battleID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = append(p.dropped, battleID)
}

func (p *mockPublisher) count(kind broadcast.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (p *mockPublisher) of(kind broadcast.Kind) []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []interface{}
	for _, e := range p.events {
		if e.kind == kind {
			out = append(out, e.payload)
		}
	}
	return out
}

func (p *mockPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type mockCodes struct {
	mu    sync.Mutex
	codes map[string]*game.AccessCode
}

func newMockCodes() *mockCodes { return &mockCodes{codes: map[string]*game.AccessCode{}} }

func (m *mockCodes) SaveCode(c *game.AccessCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes[c.BattleID+"|"+c.Code] = &cp
	return nil
}

func (m *mockCodes) ConsumeCode(battleID, code string, role game.Role, name string, now time.Time) (*game.AccessCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[battleID+"|"+code]
	if !ok {
		return nil, storage.ErrCodeNotFound
	}
	if c.UsedAt != nil {
		return nil, storage.ErrCodeUsed
	}
	if !now.Before(c.ExpiresAt) {
		return nil, storage.ErrCodeExpired
	}
	if c.Role != role || (c.Name != "" && name != "" && keys.NameKey(c.Name) != keys.NameKey(name)) {
		return nil, storage.ErrCodeMismatch
	}
	used := now
	c.UsedAt = &used
	cp := *c
	return &cp, nil
}

func (m *mockCodes) DeleteCodesForBattle(battleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, c := range m.codes {
		if c.BattleID == battleID {
			delete(m.codes, k)
		}
	}
	return nil
}

func (m *mockCodes) PurgeExpiredCodes(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, c := range m.codes {
		if c.UsedAt != nil || !now.Before(c.ExpiresAt) {
			delete(m.codes, k)
			n++
		}
	}
	return n, nil
}

type fixture struct {
	svc   *BattleService
	clock *timers.ManualClock
	pub   *mockPublisher
	codes *mockCodes
}

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newFixture builds a service with scripted dice (every roll is 10 unless
// rolls are given), a manual clock and no ticking.
func newFixture(t *testing.T, tweak func(d *config.BattleDefaults), rolls ...int) *fixture {
	t.Helper()
	if len(rolls) == 0 {
		rolls = []int{10}
	}
	clock := timers.NewManualClock(testStart)
	d := config.Defaults().Battle
	d.TurnTimeLimit = 0
	d.BattleDuration = 0
	d.MaxTurns = 0
	if tweak != nil {
		tweak(&d)
	}
	signer, err := auth.NewSigner("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	signer.WithClock(clock.Now)
	pub := &mockPublisher{}
	codes := newMockCodes()
	n := 0
	svc, err := New(Options{
		Codes:        codes,
		Publisher:    pub,
		Roller:       dice.NewSequence(rolls...),
		Signer:       signer,
		Clock:        clock,
		Defaults:     d,
		TickInterval: -1,
		NewID: func() string {
			n++
			return fmt.Sprintf("battle-%d", n)
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{svc: svc, clock: clock, pub: pub, codes: codes}
}

// lobby creates a battle with the given team rosters. Agility decreases down
// each roster so the turn order follows the listed order.
func (f *fixture) lobby(t *testing.T, mode string, teamA, teamB []string) string {
	t.Helper()
	snap, err := f.svc.CreateBattle(mode, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	add := func(team string, names []string, agiTop int) {
		for i, n := range names {
			_, err := f.svc.AddCharacter(snap.ID, CharacterInput{
				Team:  team,
				Name:  n,
				Stats: game.Stats{Attack: 3, Defense: 3, Agility: agiTop - i, Luck: 1},
			})
			if err != nil {
				t.Fatalf("add %s: %v", n, err)
			}
		}
	}
	add("A", teamA, 5)
	add("B", teamB, 4)
	return snap.ID
}

func (f *fixture) started(t *testing.T, mode string, teamA, teamB []string) string {
	t.Helper()
	id := f.lobby(t, mode, teamA, teamB)
	if err := f.svc.StartBattle(id); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.pub.reset()
	return id
}

func (f *fixture) snapshot(t *testing.T, id string) game.Snapshot {
	t.Helper()
	s, err := f.svc.Snapshot(id)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return s
}

func (f *fixture) idOf(t *testing.T, battleID, name string) string {
	t.Helper()
	for _, team := range f.snapshot(t, battleID).Teams {
		for _, p := range team.Players {
			if p.Name == name {
				return p.ID
			}
		}
	}
	t.Fatalf("no player %s", name)
	return ""
}

func (f *fixture) player(t *testing.T, battleID, name string) *game.Player {
	t.Helper()
	for _, team := range f.snapshot(t, battleID).Teams {
		for _, p := range team.Players {
			if p.Name == name {
				return p
			}
		}
	}
	t.Fatalf("no player %s", name)
	return nil
}

func (f *fixture) current(t *testing.T, battleID string) string {
	t.Helper()
	s := f.snapshot(t, battleID)
	for _, team := range s.Teams {
		for _, p := range team.Players {
			if p.ID == s.CurrentID {
				return p.Name
			}
		}
	}
	return ""
}
