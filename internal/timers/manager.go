// Package timers owns the battle, team-phase and per-player clocks of one
// battle. Deadlines survive pause/resume exactly; expiries and warnings are
// delivered to a Listener outside the manager's lock.
package timers

import (
	"errors"
	"sort"
	"sync"
	"time"
)

type Kind string

const (
	KindBattle Kind = "battle"
	KindPhase  Kind = "team_phase"
	KindPlayer Kind = "player"
)

const (
	DefaultWarnFraction = 0.8
	DefaultTick         = time.Second
	DefaultPhase        = 5 * time.Minute
	DefaultPrecision    = time.Millisecond
)

var (
	ErrNotRunning      = errors.New("timer not running")
	ErrInvalidDuration = errors.New("timer duration must be positive")
	ErrClosed          = errors.New("timer manager closed")
)

type Warning struct {
	BattleID  string        `json:"battle_id"`
	Kind      Kind          `json:"kind"`
	Key       string        `json:"key,omitempty"`
	Fraction  float64       `json:"fraction"`
	Remaining time.Duration `json:"remaining"`
}

// PhaseExpiry lists every participant still pending when a team phase ran out.
type PhaseExpiry struct {
	BattleID string   `json:"battle_id"`
	Team     string   `json:"team"`
	Seq      uint64   `json:"seq"`
	Pending  []string `json:"pending"`
}

type PlayerExpiry struct {
	BattleID string `json:"battle_id"`
	PlayerID string `json:"player_id"`
	Seq      uint64 `json:"seq"`
}

// Progress is one timer's state as published on every tick.
type Progress struct {
	Kind      Kind          `json:"kind"`
	Key       string        `json:"key,omitempty"`
	Duration  time.Duration `json:"duration"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
	Fraction  float64       `json:"fraction"`
	Paused    bool          `json:"paused"`
}

// Listener receives timer events. Calls happen on timer goroutines and never
// while the manager holds its lock, so implementations may call back into it.
type Listener interface {
	TimerWarning(w Warning)
	BattleExpired(battleID string)
	PhaseExpired(e PhaseExpiry)
	PlayerExpired(e PlayerExpiry)
	Tick(battleID string, progress []Progress)
}

type Options struct {
	// WarnFractions are elapsed fractions in (0,1) that trigger a warning.
	WarnFractions []float64
	// TickInterval drives progress publication; negative disables ticking.
	TickInterval time.Duration
	// Precision is the granularity remaining time is captured at on pause.
	Precision time.Duration
	Clock     Clock
}

func (o Options) withDefaults() Options {
	if len(o.WarnFractions) == 0 {
		o.WarnFractions = []float64{DefaultWarnFraction}
	}
	if o.TickInterval == 0 {
		o.TickInterval = DefaultTick
	}
	if o.Precision <= 0 {
		o.Precision = DefaultPrecision
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	return o
}

type countdown struct {
	kind     Kind
	key      string
	seq      uint64
	gen      uint64
	duration time.Duration
	deadline time.Time
	// remaining is authoritative while paused.
	remaining time.Duration
	paused    bool
	warned    map[float64]bool
	handles   []Stopper
}

type phaseState struct {
	*countdown
	pending []string
}

// Manager holds the three timer families for a single battle.
type Manager struct {
	battleID string
	listener Listener
	opts     Options
	clock    Clock

	mu      sync.Mutex
	battle  *countdown
	phase   *phaseState
	players map[string]*countdown
	seq     uint64
	tick    Stopper
	tickGen uint64
	closed  bool
}

// New returns a Manager for battleID reporting to l.
func New(battleID string, l Listener, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		battleID: battleID,
		listener: l,
		opts:     opts,
		clock:    opts.Clock,
		players:  map[string]*countdown{},
	}
}

func (m *Manager) newCountdown(kind Kind, key string, d time.Duration) *countdown {
	m.seq++
	return &countdown{
		kind:      kind,
		key:       key,
		seq:       m.seq,
		duration:  d,
		remaining: d,
		warned:    map[float64]bool{},
	}
}

// StartBattle (re)starts the whole-match clock and returns its sequence number.
func (m *Manager) StartBattle(d time.Duration) (uint64, error) {
	if d <= 0 {
		return 0, ErrInvalidDuration
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.stopLocked(m.battle)
	c := m.newCountdown(KindBattle, "", d)
	m.battle = c
	m.runLocked(c)
	m.ensureTickLocked()
	return c.seq, nil
}

// StartPhase (re)starts the team-phase clock with the given pending participants.
func (m *Manager) StartPhase(team string, pending []string, d time.Duration) (uint64, error) {
	if d <= 0 {
		return 0, ErrInvalidDuration
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if m.phase != nil {
		m.stopLocked(m.phase.countdown)
	}
	c := m.newCountdown(KindPhase, team, d)
	m.phase = &phaseState{countdown: c, pending: append([]string(nil), pending...)}
	m.runLocked(c)
	m.ensureTickLocked()
	return c.seq, nil
}

// StartPlayer (re)starts playerID's turn clock.
func (m *Manager) StartPlayer(playerID string, d time.Duration) (uint64, error) {
	if d <= 0 {
		return 0, ErrInvalidDuration
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.stopLocked(m.players[playerID])
	c := m.newCountdown(KindPlayer, playerID, d)
	m.players[playerID] = c
	m.runLocked(c)
	m.ensureTickLocked()
	return c.seq, nil
}

// MarkActed removes playerID from the team phase's pending set and reports
// how many participants are still pending.
func (m *Manager) MarkActed(playerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == nil {
		return 0
	}
	kept := m.phase.pending[:0]
	for _, id := range m.phase.pending {
		if id != playerID {
			kept = append(kept, id)
		}
	}
	m.phase.pending = kept
	return len(kept)
}

// Pending returns the participants still expected to act in the team phase.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == nil {
		return nil
	}
	return append([]string(nil), m.phase.pending...)
}

func (m *Manager) ClearBattle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(m.battle)
	m.battle = nil
}

func (m *Manager) ClearPhase() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != nil {
		m.stopLocked(m.phase.countdown)
	}
	m.phase = nil
}

func (m *Manager) ClearPlayer(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(m.players[playerID])
	delete(m.players, playerID)
}

// ClearPlayers stops every per-player clock.
func (m *Manager) ClearPlayers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.players {
		m.stopLocked(c)
		delete(m.players, id)
	}
}

// Close stops everything; the manager cannot be restarted.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopLocked(m.battle)
	m.battle = nil
	if m.phase != nil {
		m.stopLocked(m.phase.countdown)
		m.phase = nil
	}
	for id, c := range m.players {
		m.stopLocked(c)
		delete(m.players, id)
	}
	m.stopTickLocked()
}

func (m *Manager) lookupLocked(kind Kind, key string) *countdown {
	switch kind {
	case KindBattle:
		return m.battle
	case KindPhase:
		if m.phase != nil {
			return m.phase.countdown
		}
	case KindPlayer:
		return m.players[key]
	}
	return nil
}

func (m *Manager) allLocked() []*countdown {
	out := make([]*countdown, 0, 2+len(m.players))
	if m.battle != nil {
		out = append(out, m.battle)
	}
	if m.phase != nil {
		out = append(out, m.phase.countdown)
	}
	ids := make([]string, 0, len(m.players))
	for id := range m.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, m.players[id])
	}
	return out
}

// Pause freezes one timer, capturing its remaining time.
func (m *Manager) Pause(kind Kind, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.lookupLocked(kind, key)
	if c == nil {
		return ErrNotRunning
	}
	m.pauseLocked(c, m.clock.Now())
	return nil
}

// Resume restarts one paused timer from now + remaining.
func (m *Manager) Resume(kind Kind, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.lookupLocked(kind, key)
	if c == nil {
		return ErrNotRunning
	}
	if c.paused {
		c.paused = false
		m.runLocked(c)
	}
	m.ensureTickLocked()
	return nil
}

// PauseAll freezes every running timer and the tick.
func (m *Manager) PauseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for _, c := range m.allLocked() {
		m.pauseLocked(c, now)
	}
	m.stopTickLocked()
}

// ResumeAll reschedules every paused timer from now + remaining.
func (m *Manager) ResumeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.allLocked() {
		if c.paused {
			c.paused = false
			m.runLocked(c)
		}
	}
	m.ensureTickLocked()
}

// Remaining reports the time left on a timer.
func (m *Manager) Remaining(kind Kind, key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.lookupLocked(kind, key)
	if c == nil {
		return 0, false
	}
	return m.remainingLocked(c, m.clock.Now()), true
}

// Snapshot returns the progress of every live timer.
func (m *Manager) Snapshot() []Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progressLocked(m.clock.Now())
}

func (m *Manager) remainingLocked(c *countdown, now time.Time) time.Duration {
	if c.paused {
		return c.remaining
	}
	r := c.deadline.Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

func (m *Manager) progressLocked(now time.Time) []Progress {
	all := m.allLocked()
	out := make([]Progress, 0, len(all))
	for _, c := range all {
		rem := m.remainingLocked(c, now)
		elapsed := c.duration - rem
		out = append(out, Progress{
			Kind:      c.kind,
			Key:       c.key,
			Duration:  c.duration,
			Elapsed:   elapsed,
			Remaining: rem,
			Fraction:  float64(elapsed) / float64(c.duration),
			Paused:    c.paused,
		})
	}
	return out
}

func (m *Manager) pauseLocked(c *countdown, now time.Time) {
	if c == nil || c.paused {
		return
	}
	rem := c.deadline.Sub(now)
	if rem < 0 {
		rem = 0
	}
	c.remaining = rem.Round(m.opts.Precision)
	c.paused = true
	m.stopLocked(c)
}

// stopLocked cancels c's scheduled callbacks and invalidates any that already
// started but have not taken the lock yet.
func (m *Manager) stopLocked(c *countdown) {
	if c == nil {
		return
	}
	for _, h := range c.handles {
		h.Stop()
	}
	c.handles = nil
	c.gen++
}

// runLocked schedules expiry and outstanding warnings from now + remaining.
func (m *Manager) runLocked(c *countdown) {
	now := m.clock.Now()
	c.deadline = now.Add(c.remaining)
	c.gen++
	gen := c.gen
	elapsed := c.duration - c.remaining
	for _, f := range m.opts.WarnFractions {
		if f <= 0 || f >= 1 || c.warned[f] {
			continue
		}
		at := time.Duration(float64(c.duration) * f)
		delay := at - elapsed
		if delay < 0 {
			delay = 0
		}
		frac := f
		c.handles = append(c.handles, m.clock.AfterFunc(delay, func() { m.fireWarning(c, gen, frac) }))
	}
	c.handles = append(c.handles, m.clock.AfterFunc(c.remaining, func() { m.fireExpiry(c, gen) }))
}

func (m *Manager) liveLocked(c *countdown, gen uint64) bool {
	return !m.closed && c.gen == gen && !c.paused && m.lookupLocked(c.kind, c.key) == c
}

func (m *Manager) fireWarning(c *countdown, gen uint64, frac float64) {
	m.mu.Lock()
	if !m.liveLocked(c, gen) || c.warned[frac] {
		m.mu.Unlock()
		return
	}
	c.warned[frac] = true
	w := Warning{BattleID: m.battleID, Kind: c.kind, Key: c.key, Fraction: frac, Remaining: m.remainingLocked(c, m.clock.Now())}
	m.mu.Unlock()
	if m.listener != nil {
		m.listener.TimerWarning(w)
	}
}

func (m *Manager) fireExpiry(c *countdown, gen uint64) {
	m.mu.Lock()
	if !m.liveLocked(c, gen) {
		m.mu.Unlock()
		return
	}
	m.stopLocked(c)
	var notify func()
	switch c.kind {
	case KindBattle:
		m.battle = nil
		notify = func() { m.listener.BattleExpired(m.battleID) }
	case KindPhase:
		e := PhaseExpiry{BattleID: m.battleID, Team: c.key, Seq: c.seq, Pending: append([]string(nil), m.phase.pending...)}
		m.phase = nil
		notify = func() { m.listener.PhaseExpired(e) }
	case KindPlayer:
		delete(m.players, c.key)
		e := PlayerExpiry{BattleID: m.battleID, PlayerID: c.key, Seq: c.seq}
		notify = func() { m.listener.PlayerExpired(e) }
	}
	m.mu.Unlock()
	if m.listener != nil && notify != nil {
		notify()
	}
}

func (m *Manager) ensureTickLocked() {
	if m.closed || m.opts.TickInterval < 0 || m.tick != nil {
		return
	}
	m.tickGen++
	gen := m.tickGen
	m.tick = m.clock.AfterFunc(m.opts.TickInterval, func() { m.onTick(gen) })
}

func (m *Manager) stopTickLocked() {
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	m.tickGen++
}

func (m *Manager) onTick(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.tickGen {
		m.mu.Unlock()
		return
	}
	m.tick = nil
	progress := m.progressLocked(m.clock.Now())
	running := false
	for _, p := range progress {
		if !p.Paused {
			running = true
		}
	}
	if running {
		m.ensureTickLocked()
	}
	m.mu.Unlock()
	if running && m.listener != nil {
		m.listener.Tick(m.battleID, progress)
	}
}
