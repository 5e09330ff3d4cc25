package service

import (
	"errors"

	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
	"github.com/CriminalTalent/battle-system-sub001/internal/storage"
	"github.com/CriminalTalent/battle-system-sub001/internal/timers"
	"github.com/CriminalTalent/battle-system-sub001/internal/turnorder"
)

// Timer callbacks arrive on timer goroutines. Each one re-enters the battle
// through mutate so it is serialized with player actions; sequence numbers
// drop expiries that lost a race with an action.

var _ timers.Listener = (*BattleService)(nil)

func (s *BattleService) onTimer(battleID, what string, fn func(b *game.Battle, sess *session, m *mutation) error) {
	err := s.mutate(battleID, fn)
	if err != nil && !errors.Is(err, storage.ErrBattleNotFound) {
		logging.Error("timer callback failed", err, logging.Fields{
			constants.LogFieldBattleID: battleID,
			constants.LogFieldEvent:    what,
		})
	}
}

// TimerWarning forwards a warning to clients.
func (s *BattleService) TimerWarning(w timers.Warning) {
	s.onTimer(w.BattleID, "warning", func(b *game.Battle, _ *session, m *mutation) error {
		m.quiet = true
		if b.Phase == game.PhaseActive {
			m.emit(broadcast.TimerWarning, w)
		}
		return nil
	})
}

// BattleExpired ends the battle on time.
func (s *BattleService) BattleExpired(battleID string) {
	s.onTimer(battleID, "battle_expired", func(b *game.Battle, sess *session, m *mutation) error {
		if b.Phase != game.PhaseActive && b.Phase != game.PhasePaused {
			m.quiet = true
			return nil
		}
		m.log(game.LogTimer, "Battle time is up")
		s.endLocked(b, sess, m, turnorder.EndTimeout, "")
		return nil
	})
}

// PhaseExpired auto-passes every participant of the expired team phase that
// had not acted, each one individually, then moves on to the other team.
func (s *BattleService) PhaseExpired(e timers.PhaseExpiry) {
	s.onTimer(e.BattleID, "phase_expired", func(b *game.Battle, sess *session, m *mutation) error {
		if b.Phase == game.PhasePaused && e.Seq == sess.phaseSeq {
			sess.latePhase = &e
		}
		if b.Phase != game.PhaseActive || !s.expirePhaseLocked(b, sess, m, e) {
			m.quiet = true
		}
		return nil
	})
}

func (s *BattleService) expirePhaseLocked(b *game.Battle, sess *session, m *mutation, e timers.PhaseExpiry) bool {
	if e.Seq != sess.phaseSeq || len(e.Pending) == 0 {
		return false
	}
	pending := make(map[string]bool, len(e.Pending))
	for _, id := range e.Pending {
		pending[id] = true
	}
	passed := 0
	for b.Phase == game.PhaseActive && string(b.Turn.Team) == e.Team && pending[b.Turn.ActorID] {
		id := b.Turn.ActorID
		delete(pending, id)
		s.autoPassLocked(b, sess, m, id, ReasonPhaseTimeout)
		passed++
		s.advanceLocked(b, sess, m)
	}
	if passed == 0 {
		return false
	}
	// The same team still acting means no new phase was opened.
	if b.Phase == game.PhaseActive && sess.phaseSeq == e.Seq {
		s.startPhaseLocked(b, sess, m)
	}
	logBattle("team phase expired", b, logging.Fields{
		constants.LogFieldTeam:  e.Team,
		constants.LogFieldCount: passed,
	})
	return true
}

// PlayerExpired auto-passes the current actor when their turn clock runs out.
func (s *BattleService) PlayerExpired(e timers.PlayerExpiry) {
	s.onTimer(e.BattleID, "player_expired", func(b *game.Battle, sess *session, m *mutation) error {
		if b.Phase == game.PhasePaused && e.Seq == sess.playerSeq && e.PlayerID == sess.playerID {
			sess.latePlayer = &e
		}
		if b.Phase != game.PhaseActive || !s.expirePlayerLocked(b, sess, m, e) {
			m.quiet = true
		}
		return nil
	})
}

func (s *BattleService) expirePlayerLocked(b *game.Battle, sess *session, m *mutation, e timers.PlayerExpiry) bool {
	if e.Seq != sess.playerSeq || e.PlayerID != sess.playerID || b.Turn.ActorID != e.PlayerID {
		return false
	}
	sess.playerID, sess.playerSeq = "", 0
	s.autoPassLocked(b, sess, m, e.PlayerID, ReasonTurnTimeout)
	s.advanceLocked(b, sess, m)
	return true
}

// applyLateExpiriesLocked runs the expiries that were held back by a pause.
// The phase goes first; if it already passed the actor the player expiry is
// stale and drops out on its sequence check.
func (s *BattleService) applyLateExpiriesLocked(b *game.Battle, sess *session, m *mutation) {
	phase, player := sess.latePhase, sess.latePlayer
	sess.latePhase, sess.latePlayer = nil, nil
	if phase != nil && b.Phase == game.PhaseActive {
		s.expirePhaseLocked(b, sess, m, *phase)
	}
	if player != nil && b.Phase == game.PhaseActive {
		s.expirePlayerLocked(b, sess, m, *player)
	}
}

type tickPayload struct {
	BattleID string            `json:"battle_id"`
	Timers   []timers.Progress `json:"timers"`
}

// Tick publishes timer progress. It does not touch the battle.
func (s *BattleService) Tick(battleID string, progress []timers.Progress) {
	s.onTimer(battleID, "tick", func(b *game.Battle, _ *session, m *mutation) error {
		m.quiet = true
		if b.Phase == game.PhaseActive {
			m.emit(broadcast.TimerTick, tickPayload{BattleID: battleID, Timers: progress})
		}
		return nil
	})
}
