package service

import (
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
	"github.com/CriminalTalent/battle-system-sub001/internal/timers"
	"github.com/CriminalTalent/battle-system-sub001/internal/turnorder"
)

// StartBattle rolls initiative, builds the turn order and starts the battle,
// team-phase and player clocks.
func (s *BattleService) StartBattle(battleID string) error {
	return s.mutate(battleID, func(b *game.Battle, sess *session, m *mutation) error {
		if b.Phase != game.PhaseLobby {
			return ErrNotInLobby
		}
		if len(b.Living(game.TeamA)) == 0 || len(b.Living(game.TeamB)) == 0 {
			return ErrNotEnoughPlayers
		}
		lines, err := turnorder.InitFirstTurn(b, s.dice, m.now)
		if err != nil {
			return ErrNotEnoughPlayers
		}
		b.Phase = game.PhaseActive
		b.StartedAt = m.now
		m.log(game.LogSystem, "Battle started")
		m.logLines(game.LogTurn, lines)

		if b.Settings.BattleDuration > 0 {
			if _, err := sess.timers.StartBattle(b.Settings.BattleDuration); err != nil {
				s.failLocked(b, sess, m, err)
				return nil
			}
		}
		s.startPhaseLocked(b, sess, m)
		s.startPlayerLocked(b, sess, m)
		logBattle("battle started", b, logging.Fields{constants.LogFieldCount: len(b.Order)})
		return nil
	})
}

func (s *BattleService) phaseDuration(b *game.Battle) time.Duration {
	if b.Settings.TeamPhaseDuration > 0 {
		return b.Settings.TeamPhaseDuration
	}
	return timers.DefaultPhase
}

// startPhaseLocked opens a team phase for the team currently acting.
func (s *BattleService) startPhaseLocked(b *game.Battle, sess *session, m *mutation) {
	if b.Phase != game.PhaseActive {
		return
	}
	seq, err := sess.timers.StartPhase(string(b.Turn.Team), turnorder.PendingInPhase(b), s.phaseDuration(b))
	if err != nil {
		s.failLocked(b, sess, m, err)
		return
	}
	sess.phaseSeq = seq
}

// startPlayerLocked restarts the per-player clock for the current actor.
func (s *BattleService) startPlayerLocked(b *game.Battle, sess *session, m *mutation) {
	if sess.playerID != "" {
		sess.timers.ClearPlayer(sess.playerID)
		sess.playerID, sess.playerSeq = "", 0
	}
	if b.Phase != game.PhaseActive || b.Settings.TurnTimeLimit <= 0 || b.Turn.ActorID == "" {
		return
	}
	seq, err := sess.timers.StartPlayer(b.Turn.ActorID, b.Settings.TurnTimeLimit)
	if err != nil {
		s.failLocked(b, sess, m, err)
		return
	}
	sess.playerID, sess.playerSeq = b.Turn.ActorID, seq
}

// failLocked ends a battle whose timers can no longer be trusted.
func (s *BattleService) failLocked(b *game.Battle, sess *session, m *mutation, err error) {
	logging.Error("battle timers failed", err, logging.Fields{constants.LogFieldBattleID: b.ID})
	s.endLocked(b, sess, m, EndError, "")
}
