package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/engine"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/turnorder"
)

type ActionType string

const (
	ActionAttack  ActionType = "attack"
	ActionUseItem ActionType = "useItem"
	ActionPass    ActionType = "pass"
)

// ParseActionType accepts the canonical names plus the spellings older
// clients send.
func ParseActionType(s string) (ActionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attack":
		return ActionAttack, true
	case "useitem", "use_item", "item":
		return ActionUseItem, true
	case "pass", "skip":
		return ActionPass, true
	}
	return "", false
}

// Action is one player command. Turn, when non-zero, is the turn number the
// client believed current; a mismatch is rejected as stale.
type Action struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
	Item     string `json:"item"`
	Turn     int    `json:"turn"`
}

// ActionResult reports what an accepted action did.
type ActionResult struct {
	OK        bool                  `json:"ok"`
	Type      ActionType            `json:"type"`
	Attack    *engine.AttackOutcome `json:"attack,omitempty"`
	Item      *engine.ItemResult    `json:"item,omitempty"`
	Turn      int                   `json:"turn"`
	NextActor string                `json:"next_actor,omitempty"`
	Ended     bool                  `json:"ended"`
	Winner    game.TeamKey          `json:"winner,omitempty"`
}

// PlayerAction validates and applies playerID's action, then advances the turn.
// Rejected actions leave the battle untouched and publish nothing.
func (s *BattleService) PlayerAction(battleID, playerID string, a Action) (*ActionResult, error) {
	typ, ok := ParseActionType(a.Type)
	if !ok {
		return nil, ErrInvalidAction
	}
	var res ActionResult
	err := s.mutate(battleID, func(b *game.Battle, sess *session, m *mutation) error {
		if err := checkActor(b, playerID, a.Turn); err != nil {
			return err
		}
		actor := b.Player(playerID)
		res = ActionResult{OK: true, Type: typ, Turn: b.Turn.Number}

		switch typ {
		case ActionAttack:
			out, err := s.engine.Attack(b, playerID, a.TargetID, 1)
			if err != nil {
				return mapEngineErr(err)
			}
			res.Attack = &out
			m.logLines(game.LogCombat, out.Lines)
		case ActionUseItem:
			ir := s.engine.ApplyItemEffect(b, playerID, a.Item, a.TargetID)
			if !ir.OK {
				if ir.Reason == engine.ReasonUnknownItem {
					return ErrUnknownItem
				}
				return fmt.Errorf("%w: %s", ErrItemDeclined, ir.Reason)
			}
			res.Item = &ir
			m.logLines(game.LogItem, ir.Lines)
		case ActionPass:
			m.logf(game.LogTurn, "%s passes", actor.Name)
		}

		s.advanceLocked(b, sess, m)
		res.NextActor = b.Turn.ActorID
		res.Ended = b.Phase == game.PhaseEnded
		res.Winner = b.Winner
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// checkActor rejects actions from anyone but the current, living actor of an
// active battle.
func checkActor(b *game.Battle, playerID string, turn int) error {
	if b.Phase != game.PhaseActive {
		return ErrNotActive
	}
	p := b.Player(playerID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if b.Turn.AutoPassed[playerID] {
		return ErrStaleTurn
	}
	if turn != 0 && turn != b.Turn.Number {
		return ErrStaleTurn
	}
	if !p.Alive() {
		return ErrActorDown
	}
	if b.Turn.ActorID != playerID {
		return ErrNotYourTurn
	}
	if p.HasActed {
		return ErrAlreadyActed
	}
	return nil
}

func mapEngineErr(err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidTarget):
		return ErrInvalidTarget
	case errors.Is(err, engine.ErrActorDown):
		return ErrActorDown
	case errors.Is(err, engine.ErrUnknownPlayer):
		return ErrPlayerNotFound
	}
	return err
}

// AutoPass passes playerID's turn on their behalf. It is the same mutation as
// a pass action and is used when a clock runs out.
func (s *BattleService) AutoPass(battleID, playerID, reason string) error {
	return s.mutate(battleID, func(b *game.Battle, sess *session, m *mutation) error {
		if err := checkActor(b, playerID, 0); err != nil {
			return err
		}
		s.autoPassLocked(b, sess, m, playerID, reason)
		s.advanceLocked(b, sess, m)
		return nil
	})
}

type timeoutPayload struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
	Turn     int    `json:"turn"`
}

// Auto-pass reasons.
const (
	ReasonTurnTimeout  = "turn_timeout"
	ReasonPhaseTimeout = "team_phase_timeout"
)

// autoPassLocked records one auto-pass without advancing the turn.
func (s *BattleService) autoPassLocked(b *game.Battle, sess *session, m *mutation, playerID, reason string) {
	p := b.Player(playerID)
	if p == nil {
		return
	}
	if b.Turn.AutoPassed == nil {
		b.Turn.AutoPassed = map[string]bool{}
	}
	b.Turn.AutoPassed[playerID] = true
	p.HasActed = true
	sess.timers.MarkActed(playerID)
	m.logf(game.LogTimer, "%s did not act in time and passes", p.Name)
	m.emit(broadcast.TurnTimeout, timeoutPayload{PlayerID: p.ID, Name: p.Name, Reason: reason, Turn: b.Turn.Number})
}

// advanceLocked completes the current turn, checks for the end of the battle
// and hands the turn to the next living participant.
func (s *BattleService) advanceLocked(b *game.Battle, sess *session, m *mutation) {
	actor := b.Turn.ActorID
	turnorder.FinishTurn(b)
	sess.timers.MarkActed(actor)

	if over, reason := turnorder.IsBattleOver(b, m.now); over {
		s.endLocked(b, sess, m, reason, "")
		return
	}
	adv, ok := turnorder.NextTurn(b, m.now)
	if !ok {
		s.endLocked(b, sess, m, turnorder.EndElimination, "")
		return
	}
	next := b.Player(adv.ActorID)
	m.logf(game.LogTurn, "Turn %d: %s (team %s)", b.Turn.Number, next.Name, next.Team)
	if adv.TeamChanged || adv.Wrapped {
		s.startPhaseLocked(b, sess, m)
	}
	s.startPlayerLocked(b, sess, m)
}
