// Package turnorder sequences participants: initiative, first turn, turn
// advancement, end detection and winner selection.
package turnorder

import (
	"fmt"
	"sort"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/dice"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

const (
	EndElimination = "elimination"
	EndTimeout     = "timeout"
	EndMaxTurns    = "max_turns"
)

// TeamAgility sums the agility of the living members of team k.
func TeamAgility(b *game.Battle, k game.TeamKey) int {
	sum := 0
	for _, p := range b.Living(k) {
		sum += p.Stats.Agility
	}
	return sum
}

// RollInitiative sets Initiative = agility + d20 on every player. Every
// player caught in a tie rerolls through dice.RollWithReroll until its value
// differs from all others; dice.MaxRerolls bounds that. Collisions left after
// the bound are ordered by player id in SortByInitiative.
func RollInitiative(r dice.Roller, players []*game.Player) {
	for _, p := range players {
		p.Initiative = p.Stats.Agility + r.Roll(dice.D20)
	}
	for _, p := range tiedPlayers(players) {
		p := p
		res := dice.RollWithReroll(r, dice.D20, func(v int) bool {
			return collides(players, p, p.Stats.Agility+v)
		})
		p.Initiative = p.Stats.Agility + res.Final
	}
}

func collides(players []*game.Player, self *game.Player, initiative int) bool {
	for _, o := range players {
		if o != self && o.Initiative == initiative {
			return true
		}
	}
	return false
}

func tiedPlayers(players []*game.Player) []*game.Player {
	counts := make(map[int]int, len(players))
	for _, p := range players {
		counts[p.Initiative]++
	}
	var out []*game.Player
	for _, p := range players {
		if counts[p.Initiative] > 1 {
			out = append(out, p)
		}
	}
	return out
}

// SortByInitiative orders players by initiative, highest first, then by id.
// The result is a strict order even when initiative values collide.
func SortByInitiative(players []*game.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i], players[j]
		if a.Initiative != b.Initiative {
			return a.Initiative > b.Initiative
		}
		return a.ID < b.ID
	})
}

// PinMostAgile moves the most agile player of an initiative-sorted slice to
// the front. Among equally agile players the earlier one wins.
func PinMostAgile(players []*game.Player) {
	best := 0
	for i, p := range players {
		if p.Stats.Agility > players[best].Stats.Agility {
			best = i
		}
	}
	if best == 0 {
		return
	}
	lead := players[best]
	copy(players[1:best+1], players[:best])
	players[0] = lead
}

// FirstTeam returns the team with the higher summed living agility. Equal sums
// go to the battle's FirstTeamOnTie setting.
func FirstTeam(b *game.Battle) game.TeamKey {
	a, bb := TeamAgility(b, game.TeamA), TeamAgility(b, game.TeamB)
	switch {
	case a > bb:
		return game.TeamA
	case bb > a:
		return game.TeamB
	}
	if b.Settings.FirstTeamOnTie.Valid() {
		return b.Settings.FirstTeamOnTie
	}
	return game.TeamA
}

// InitFirstTurn rolls initiative, builds the turn order (leading team first,
// each team ordered by SortByInitiative) and points the turn at the most agile
// living member of the leading team. It returns log lines describing the result.
func InitFirstTurn(b *game.Battle, r dice.Roller, now time.Time) ([]string, error) {
	lead := FirstTeam(b)
	lines := []string{fmt.Sprintf("Team agility: A %d, B %d. Team %s acts first.",
		TeamAgility(b, game.TeamA), TeamAgility(b, game.TeamB), lead)}

	order := make([]string, 0, len(b.Players()))
	for _, k := range []game.TeamKey{lead, lead.Opponent()} {
		living := b.Living(k)
		RollInitiative(r, living)
		SortByInitiative(living)
		if k == lead {
			PinMostAgile(living)
		}
		for _, p := range living {
			order = append(order, p.ID)
			lines = append(lines, fmt.Sprintf("%s initiative %d (AGI %d)", p.Name, p.Initiative, p.Stats.Agility))
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no living participants")
	}
	b.Order = order
	first := b.Player(order[0])
	b.Turn = game.TurnState{
		ActorID:    first.ID,
		Index:      0,
		Number:     1,
		Round:      1,
		Team:       first.Team,
		ChangedAt:  now,
		AutoPassed: map[string]bool{},
	}
	for _, p := range b.Players() {
		p.HasActed = false
	}
	lines = append(lines, fmt.Sprintf("Turn 1: %s (team %s)", first.Name, first.Team))
	return lines, nil
}

// FinishTurn marks the current actor as having acted and counts the turn.
func FinishTurn(b *game.Battle) {
	if p := b.Player(b.Turn.ActorID); p != nil {
		p.HasActed = true
	}
	b.Turn.Completed++
}

// Advance describes what NextTurn changed.
type Advance struct {
	ActorID     string
	TeamChanged bool
	Wrapped     bool
}

// NextTurn moves to the next living participant in order, skipping the dead.
// Wrapping past the end of the order starts a new round. A change of team
// starts a fresh team phase: HasActed and AutoPassed reset for that team.
func NextTurn(b *game.Battle, now time.Time) (Advance, bool) {
	n := len(b.Order)
	if n == 0 {
		return Advance{}, false
	}
	prevTeam := b.Turn.Team
	idx := b.Turn.Index
	adv := Advance{}
	for step := 1; step <= n; step++ {
		next := idx + step
		if next >= n {
			adv.Wrapped = true
		}
		p := b.Player(b.Order[next%n])
		if p == nil || !p.Alive() {
			continue
		}
		if adv.Wrapped {
			b.Turn.Round++
		}
		b.Turn.Index = next % n
		b.Turn.ActorID = p.ID
		b.Turn.Number++
		b.Turn.Team = p.Team
		b.Turn.ChangedAt = now
		adv.ActorID = p.ID
		adv.TeamChanged = p.Team != prevTeam
		if adv.TeamChanged || adv.Wrapped {
			b.Turn.AutoPassed = map[string]bool{}
			for _, m := range b.Team(p.Team).Players {
				m.HasActed = false
			}
		}
		return adv, true
	}
	return Advance{}, false
}

// PendingInPhase lists the living members of the acting team that have not acted.
func PendingInPhase(b *game.Battle) []string {
	var out []string
	for _, id := range b.Order {
		p := b.Player(id)
		if p == nil || p.Team != b.Turn.Team || !p.Alive() || p.HasActed {
			continue
		}
		out = append(out, p.ID)
	}
	return out
}

// IsBattleOver reports whether the battle must end and why.
func IsBattleOver(b *game.Battle, now time.Time) (bool, string) {
	if len(b.Living(game.TeamA)) == 0 || len(b.Living(game.TeamB)) == 0 {
		return true, EndElimination
	}
	if b.Settings.BattleDuration > 0 && b.Elapsed(now) >= b.Settings.BattleDuration {
		return true, EndTimeout
	}
	if b.Settings.MaxTurns > 0 && b.Turn.Completed >= b.Settings.MaxTurns {
		return true, EndMaxTurns
	}
	return false, ""
}

// TeamHP sums the remaining hp of team k.
func TeamHP(b *game.Battle, k game.TeamKey) int {
	sum := 0
	for _, p := range b.Team(k).Players {
		sum += p.HP
	}
	return sum
}

// DetermineWinner returns the surviving team on elimination, otherwise the team
// with more remaining hp, otherwise Draw.
func DetermineWinner(b *game.Battle) game.TeamKey {
	aAlive, bAlive := len(b.Living(game.TeamA)) > 0, len(b.Living(game.TeamB)) > 0
	switch {
	case aAlive && !bAlive:
		return game.TeamA
	case bAlive && !aAlive:
		return game.TeamB
	case !aAlive && !bAlive:
		return game.Draw
	}
	ha, hb := TeamHP(b, game.TeamA), TeamHP(b, game.TeamB)
	switch {
	case ha > hb:
		return game.TeamA
	case hb > ha:
		return game.TeamB
	}
	return game.Draw
}
