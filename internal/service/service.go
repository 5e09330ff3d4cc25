// Package service orchestrates battles: it applies player and admin
// operations through the combat and turn engines, drives the per-battle
// timers and publishes the resulting events.
package service

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/auth"
	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/config"
	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/dedupe"
	"github.com/CriminalTalent/battle-system-sub001/internal/dice"
	"github.com/CriminalTalent/battle-system-sub001/internal/engine"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
	"github.com/CriminalTalent/battle-system-sub001/internal/storage"
	"github.com/CriminalTalent/battle-system-sub001/internal/timers"
)

var (
	ErrBattleNotFound   = storage.ErrBattleNotFound
	ErrInvalidMode      = errors.New("invalid mode")
	ErrInvalidTeam      = errors.New("invalid team")
	ErrTeamFull         = errors.New("team is full")
	ErrNameRequired     = errors.New("name is required")
	ErrNameTaken        = errors.New("name already taken")
	ErrUnknownItem      = errors.New("unknown item")
	ErrNotInLobby       = errors.New("battle already started")
	ErrNotActive        = errors.New("battle is not active")
	ErrNotPaused        = errors.New("battle is not paused")
	ErrAlreadyEnded     = errors.New("battle already ended")
	ErrNotEnoughPlayers = errors.New("each team needs at least one player")
	ErrPlayerNotFound   = errors.New("player not in battle")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyActed     = errors.New("already acted this turn")
	ErrActorDown        = errors.New("player is down")
	ErrInvalidAction    = errors.New("invalid action type")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrItemDeclined     = errors.New("item use declined")
	ErrStaleTurn        = errors.New("stale turn")
	ErrInvalidChat      = errors.New("chat message must be 1 to 500 characters")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidWinner    = errors.New("winner must be A, B or draw")
	ErrInvalidCode      = errors.New("invalid one-time code")
	ErrUnauthorized     = errors.New("invalid or missing token")
)

// End reasons beyond the ones decided by the turn engine.
const (
	EndForced  = "forced"
	EndDeleted = "deleted"
	EndError   = "error"
)

// Publisher fans events out to the clients of a battle.
type Publisher interface {
	Publish(battleID string, kind broadcast.Kind, payload interface{}) bool
	Drop(battleID string)
}

// Options wires the service's collaborators. Zero values get working defaults.
type Options struct {
	Store     *storage.BattleStore
	Codes     storage.CodeRepository
	Publisher Publisher
	Roller    dice.Roller
	Catalog   game.Catalog
	Signer    *auth.Signer
	Clock     timers.Clock
	Defaults  config.BattleDefaults
	// TickInterval overrides the timer tick; negative disables ticking.
	TickInterval time.Duration
	NewID        func() string
}

// session is the service-side state of one battle. Its fields are only
// touched while holding that battle's store lock.
type session struct {
	timers    *timers.Manager
	phaseSeq  uint64
	playerSeq uint64
	playerID  string

	// Expiries that fired just before a pause took the lock. They are
	// applied when the battle resumes.
	latePhase  *timers.PhaseExpiry
	latePlayer *timers.PlayerExpiry
}

// BattleService is the single entry point for every battle operation.
type BattleService struct {
	store     *storage.BattleStore
	codes     storage.CodeRepository
	pub       Publisher
	dice      dice.Roller
	engine    *engine.Engine
	signer    *auth.Signer
	clock     timers.Clock
	defaults  config.BattleDefaults
	tick      time.Duration
	newID     func() string
	snapshots dedupe.Coalescer

	mu       sync.Mutex
	sessions map[string]*session
}

func New(opts Options) (*BattleService, error) {
	if opts.Store == nil {
		opts.Store = storage.NewBattleStore()
	}
	if opts.Roller == nil {
		opts.Roller = dice.NewRandom(0)
	}
	if opts.Clock == nil {
		opts.Clock = timers.RealClock()
	}
	if opts.Signer == nil {
		s, err := auth.NewSigner("", auth.SessionTTL)
		if err != nil {
			return nil, err
		}
		opts.Signer = s
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Defaults.StartingHP == 0 {
		opts.Defaults = config.Defaults().Battle
	}
	if opts.NewID == nil {
		opts.NewID = newBattleID
	}
	return &BattleService{
		store:    opts.Store,
		codes:    opts.Codes,
		pub:      opts.Publisher,
		dice:     opts.Roller,
		engine:   engine.New(opts.Roller, opts.Catalog),
		signer:   opts.Signer,
		clock:    opts.Clock,
		defaults: opts.Defaults,
		tick:     opts.TickInterval,
		newID:    opts.NewID,
		sessions: map[string]*session{},
	}, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, broadcast.Kind, interface{}) bool { return false }
func (nopPublisher) Drop(string)                                      {}

func (s *BattleService) Catalog() game.Catalog { return s.engine.Catalog() }

func (s *BattleService) newSession(battleID string) *session {
	mgr := timers.New(battleID, s, timers.Options{
		WarnFractions: s.defaults.WarnFractions,
		TickInterval:  s.tick,
		Precision:     s.defaults.Precision,
		Clock:         s.clock,
	})
	sess := &session{timers: mgr}
	s.mu.Lock()
	s.sessions[battleID] = sess
	s.mu.Unlock()
	return sess
}

func (s *BattleService) session(battleID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[battleID]
}

func (s *BattleService) dropSession(battleID string) {
	s.mu.Lock()
	sess := s.sessions[battleID]
	delete(s.sessions, battleID)
	s.mu.Unlock()
	if sess != nil {
		sess.timers.Close()
	}
}

// mutate runs fn under the battle's lock. When fn succeeds its log lines and
// events are published followed by exactly one state_updated; when it fails
// nothing is published.
func (s *BattleService) mutate(battleID string, fn func(b *game.Battle, sess *session, m *mutation) error) error {
	sess := s.session(battleID)
	return s.store.WithBattle(battleID, func(b *game.Battle) error {
		if sess == nil {
			return ErrBattleNotFound
		}
		m := &mutation{b: b, now: s.clock.Now()}
		if err := fn(b, sess, m); err != nil {
			return err
		}
		s.flush(b, m)
		return nil
	})
}

func (s *BattleService) flush(b *game.Battle, m *mutation) {
	for _, e := range m.logs {
		s.pub.Publish(b.ID, broadcast.LogAppended, e)
	}
	for _, ev := range m.events {
		s.pub.Publish(b.ID, ev.kind, ev.payload)
	}
	if !m.quiet {
		s.pub.Publish(b.ID, broadcast.StateUpdated, b.Snapshot(m.now))
	}
}

// Snapshot returns a copy of the battle's current state.
func (s *BattleService) Snapshot(battleID string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := s.store.WithBattle(battleID, func(b *game.Battle) error {
		snap = b.Snapshot(s.clock.Now())
		return nil
	})
	return snap, err
}

// SnapshotJSON encodes the battle's snapshot. Concurrent callers for the same
// battle share one encode.
func (s *BattleService) SnapshotJSON(battleID string) ([]byte, error) {
	b, _, err := s.snapshots.Do(battleID, func() ([]byte, error) {
		snap, err := s.Snapshot(battleID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)
	})
	return b, err
}

func logBattle(msg string, b *game.Battle, extra logging.Fields) {
	f := logging.Fields{constants.LogFieldBattleID: b.ID}
	for k, v := range extra {
		f[k] = v
	}
	logging.Info(msg, f)
}
