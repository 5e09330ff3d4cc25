package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CriminalTalent/battle-system-sub001/internal/auth"
	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
	"github.com/CriminalTalent/battle-system-sub001/internal/turnorder"
)

func newBattleID() string { return uuid.NewString() }

// SettingsOverride lets a creator change individual battle settings. Nil
// fields keep the server default.
type SettingsOverride struct {
	TurnTimeLimitSeconds  *int `json:"turn_time_limit_seconds"`
	TeamPhaseSeconds      *int `json:"team_phase_seconds"`
	BattleDurationSeconds *int `json:"battle_duration_seconds"`
	MaxTurns              *int `json:"max_turns"`
}

func (o *SettingsOverride) apply(s *game.Settings) {
	if o == nil {
		return
	}
	sec := func(p *int) (time.Duration, bool) {
		if p == nil || *p < 0 {
			return 0, false
		}
		return time.Duration(*p) * time.Second, true
	}
	if d, ok := sec(o.TurnTimeLimitSeconds); ok {
		s.TurnTimeLimit = d
	}
	if d, ok := sec(o.TeamPhaseSeconds); ok {
		s.TeamPhaseDuration = d
	}
	if d, ok := sec(o.BattleDurationSeconds); ok {
		s.BattleDuration = d
	}
	if o.MaxTurns != nil && *o.MaxTurns >= 0 {
		s.MaxTurns = *o.MaxTurns
	}
}

// CreateBattle registers a lobby battle and issues its three role access tokens.
func (s *BattleService) CreateBattle(mode string, override *SettingsOverride) (game.Snapshot, error) {
	m, err := game.ParseMode(mode)
	if err != nil {
		return game.Snapshot{}, ErrInvalidMode
	}
	settings := s.defaults.Settings()
	override.apply(&settings)
	now := s.clock.Now()
	tokens, err := auth.NewAccessTokens()
	if err != nil {
		return game.Snapshot{}, err
	}
	b := game.NewBattle(s.newID(), m, settings, now)
	b.Tokens = tokens
	b.AppendLog(game.LogSystem, now, "Battle created ("+m.String()+")")

	if err := s.store.Create(b); err != nil {
		return game.Snapshot{}, err
	}
	s.newSession(b.ID)
	logBattle("battle created", b, logging.Fields{"mode": m.String()})
	return b.Snapshot(now), nil
}

// GetBattle returns the battle's snapshot.
func (s *BattleService) GetBattle(battleID string) (game.Snapshot, error) {
	return s.Snapshot(battleID)
}

// Summary is the list view of a battle.
type Summary struct {
	ID        string       `json:"id"`
	Mode      string       `json:"mode"`
	Phase     game.Phase   `json:"phase"`
	Players   int          `json:"players"`
	Winner    game.TeamKey `json:"winner,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ListBattles returns summaries of every live battle ordered by id.
func (s *BattleService) ListBattles() []Summary {
	ids := s.store.IDs()
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		_ = s.store.WithBattle(id, func(b *game.Battle) error {
			out = append(out, Summary{
				ID:        b.ID,
				Mode:      b.Mode.String(),
				Phase:     b.Phase,
				Players:   len(b.Players()),
				Winner:    b.Winner,
				CreatedAt: b.CreatedAt,
			})
			return nil
		})
	}
	return out
}

// DeleteBattle removes a battle, stops its timers, deletes its codes and
// tells connected clients it is gone.
func (s *BattleService) DeleteBattle(battleID string) error {
	b, err := s.store.Remove(battleID)
	if err != nil {
		return err
	}
	s.dropSession(battleID)
	s.removeCodes(battleID)
	if b.Phase != game.PhaseEnded {
		s.pub.Publish(battleID, broadcast.BattleEnded, endedPayload{Winner: "", Reason: EndDeleted})
	}
	s.pub.Drop(battleID)
	logging.Info("battle deleted", logging.Fields{constants.LogFieldBattleID: battleID})
	return nil
}

func (s *BattleService) removeCodes(battleID string) {
	if s.codes == nil {
		return
	}
	if err := s.codes.DeleteCodesForBattle(battleID); err != nil {
		logging.Error("failed to delete access codes", err, logging.Fields{constants.LogFieldBattleID: battleID})
	}
}

// CharacterInput describes a participant added by an admin.
type CharacterInput struct {
	Team  string         `json:"team"`
	Name  string         `json:"name"`
	Stats game.Stats     `json:"stats"`
	HP    int            `json:"hp"`
	Items map[string]int `json:"items"`
}

// AddCharacter places a new participant on a team while the battle is in the lobby.
func (s *BattleService) AddCharacter(battleID string, in CharacterInput) (*game.Player, error) {
	var added game.Player
	err := s.mutate(battleID, func(b *game.Battle, _ *session, m *mutation) error {
		p, err := s.addPlayer(b, in)
		if err != nil {
			return err
		}
		m.logf(game.LogSystem, "%s joined team %s", p.Name, p.Team)
		added = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

func (s *BattleService) addPlayer(b *game.Battle, in CharacterInput) (*game.Player, error) {
	if b.Phase != game.PhaseLobby {
		return nil, ErrNotInLobby
	}
	team, ok := game.ParseTeamKey(in.Team)
	if !ok {
		return nil, ErrInvalidTeam
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if b.PlayerByName(name) != nil {
		return nil, ErrNameTaken
	}
	t := b.Team(team)
	if len(t.Players) >= b.Settings.MaxTeamSize {
		return nil, ErrTeamFull
	}
	catalog := s.engine.Catalog()
	inv := catalog.DefaultInventory()
	if in.Items != nil {
		inv = make(map[string]int, len(in.Items))
		for k, n := range in.Items {
			if _, ok := catalog.Lookup(k); !ok {
				return nil, ErrUnknownItem
			}
			if n > 0 {
				inv[k] = n
			}
		}
	}
	hp := in.HP
	if hp <= 0 {
		hp = s.defaults.StartingHP
	}
	p := &game.Player{
		ID:        uuid.NewString(),
		Name:      name,
		Team:      team,
		HP:        hp,
		MaxHP:     hp,
		Stats:     in.Stats.Clamped(),
		Inventory: inv,
	}
	t.Players = append(t.Players, p)
	return p, nil
}

// JoinResult is returned to a player joining by name.
type JoinResult struct {
	Player *game.Player `json:"player"`
	Token  string       `json:"token"`
}

// JoinBattle claims the unclaimed character called name, or creates one on
// team when the battle is still in the lobby and the team has room. The returned token
// authenticates the player for the rest of the battle.
func (s *BattleService) JoinBattle(battleID, team, name string) (*JoinResult, error) {
	var res JoinResult
	err := s.mutate(battleID, func(b *game.Battle, _ *session, m *mutation) error {
		if b.Phase == game.PhaseEnded {
			return ErrAlreadyEnded
		}
		if strings.TrimSpace(name) == "" {
			return ErrNameRequired
		}
		p := b.PlayerByName(name)
		if p == nil {
			stats := game.Stats{Attack: 3, Defense: 3, Agility: 3, Luck: 3}
			var err error
			p, err = s.addPlayer(b, CharacterInput{Team: team, Name: name, Stats: stats})
			if errors.Is(err, ErrNotInLobby) {
				return ErrPlayerNotFound
			}
			if err != nil {
				return err
			}
			m.logf(game.LogSystem, "%s joined team %s", p.Name, p.Team)
		} else if k, ok := game.ParseTeamKey(team); ok && k != p.Team {
			return ErrInvalidTeam
		} else if p.Claimed {
			// A claimed character only changes hands through a login code.
			return ErrNameTaken
		}
		p.Claimed = true
		m.logf(game.LogSystem, "%s connected", p.Name)
		tok, err := s.signer.Issue(b.ID, game.RolePlayer, p.Name, p.ID)
		if err != nil {
			return err
		}
		cp := *p
		res = JoinResult{Player: &cp, Token: tok}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// LeaveBattle removes a player while the battle is still in the lobby.
func (s *BattleService) LeaveBattle(battleID, playerID string) error {
	return s.mutate(battleID, func(b *game.Battle, _ *session, m *mutation) error {
		if b.Phase != game.PhaseLobby {
			return ErrNotInLobby
		}
		p := b.Player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		b.RemovePlayer(playerID)
		m.logf(game.LogSystem, "%s left the battle", p.Name)
		return nil
	})
}

type endedPayload struct {
	Winner game.TeamKey `json:"winner"`
	Reason string       `json:"reason"`
}

// endLocked moves the battle to ended. winner empty means it is computed from
// the battle state.
func (s *BattleService) endLocked(b *game.Battle, sess *session, m *mutation, reason string, winner game.TeamKey) {
	if b.Phase == game.PhaseEnded {
		return
	}
	if winner == "" {
		winner = turnorder.DetermineWinner(b)
	}
	if b.Phase == game.PhasePaused && !b.PausedAt.IsZero() {
		b.PausedTotal += m.now.Sub(b.PausedAt)
		b.PausedAt = time.Time{}
	}
	b.Phase = game.PhaseEnded
	b.Winner = winner
	b.EndReason = reason
	b.EndedAt = m.now
	b.Turn.ActorID = ""
	sess.timers.Close()
	sess.phaseSeq, sess.playerSeq, sess.playerID = 0, 0, ""
	sess.latePhase, sess.latePlayer = nil, nil

	if winner == game.Draw {
		m.logf(game.LogSystem, "Battle ended in a draw (%s)", reason)
	} else {
		m.logf(game.LogSystem, "Battle ended: Team %s wins (%s)", winner, reason)
	}
	m.emit(broadcast.BattleEnded, endedPayload{Winner: winner, Reason: reason})
	logBattle("battle ended", b, logging.Fields{
		constants.LogFieldWinner: string(winner),
		constants.LogFieldReason: reason,
	})
}

// ForceEnd ends the battle immediately. winner may be "A", "B", "draw" or
// empty to compute it from the current state.
func (s *BattleService) ForceEnd(battleID, winner string) (game.TeamKey, error) {
	var w game.TeamKey
	if strings.TrimSpace(winner) != "" {
		if strings.EqualFold(strings.TrimSpace(winner), string(game.Draw)) {
			w = game.Draw
		} else {
			k, ok := game.ParseTeamKey(winner)
			if !ok {
				return "", ErrInvalidWinner
			}
			w = k
		}
	}
	var result game.TeamKey
	err := s.mutate(battleID, func(b *game.Battle, sess *session, m *mutation) error {
		if b.Phase == game.PhaseEnded {
			return ErrAlreadyEnded
		}
		s.endLocked(b, sess, m, EndForced, w)
		result = b.Winner
		return nil
	})
	return result, err
}

// Sweep removes ended battles whose retention window has passed and purges
// expired one-time codes. It returns the number of battles removed.
func (s *BattleService) Sweep(now time.Time) int {
	var stale []string
	for _, id := range s.store.IDs() {
		_ = s.store.WithBattle(id, func(b *game.Battle) error {
			if b.Phase == game.PhaseEnded && now.Sub(b.EndedAt) >= s.defaults.Retention {
				stale = append(stale, id)
			}
			return nil
		})
	}
	removed := 0
	for _, id := range stale {
		if err := s.DeleteBattle(id); err == nil {
			removed++
		}
	}
	if s.codes != nil {
		n, err := s.codes.PurgeExpiredCodes(now)
		if err != nil {
			logging.Error("failed to purge expired codes", err, nil)
		} else if n > 0 {
			logging.Debug("purged expired codes", logging.Fields{constants.LogFieldCount: n})
		}
	}
	if removed > 0 {
		logging.Info("swept ended battles", logging.Fields{constants.LogFieldCount: removed})
	}
	return removed
}
