package turnorder

import (
	"testing"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/dice"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

func addPlayer(b *game.Battle, id string, team game.TeamKey, agility int) *game.Player {
	p := &game.Player{ID: id, Name: id, Team: team, HP: 100, MaxHP: 100, Stats: game.Stats{Attack: 3, Defense: 3, Agility: agility, Luck: 3}}
	t := b.Team(team)
	t.Players = append(t.Players, p)
	return p
}

func newBattle(perTeam int) *game.Battle {
	return game.NewBattle("b1", game.Mode{PerTeam: perTeam}, game.Settings{}, time.Now())
}

func TestInitFirstTurn_HigherTeamAgilityLeads(t *testing.T) {
	b := newBattle(3)
	addPlayer(b, "a1", game.TeamA, 2)
	addPlayer(b, "a2", game.TeamA, 5)
	addPlayer(b, "a3", game.TeamA, 3)
	addPlayer(b, "b1", game.TeamB, 3)
	addPlayer(b, "b2", game.TeamB, 3)
	addPlayer(b, "b3", game.TeamB, 2)

	if _, err := InitFirstTurn(b, dice.NewRandom(7), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Turn.Team != game.TeamA {
		t.Fatalf("expected team A first, got %s", b.Turn.Team)
	}
	if b.Turn.ActorID != "a2" {
		t.Fatalf("expected most agile member a2 first, got %s", b.Turn.ActorID)
	}
	if b.Turn.Number != 1 || b.Turn.Round != 1 {
		t.Fatalf("expected turn 1 round 1, got %+v", b.Turn)
	}
	if len(b.Order) != 6 {
		t.Fatalf("expected 6 entries in order, got %v", b.Order)
	}
	for i := 0; i < 3; i++ {
		if b.Player(b.Order[i]).Team != game.TeamA {
			t.Fatalf("leading team block broken: %v", b.Order)
		}
	}
}

func TestFirstTeamTieUsesSetting(t *testing.T) {
	b := newBattle(1)
	addPlayer(b, "a1", game.TeamA, 3)
	addPlayer(b, "b1", game.TeamB, 3)
	if got := FirstTeam(b); got != game.TeamA {
		t.Fatalf("default tie should favour A, got %s", got)
	}
	b.Settings.FirstTeamOnTie = game.TeamB
	if got := FirstTeam(b); got != game.TeamB {
		t.Fatalf("tie setting ignored, got %s", got)
	}
}

func TestFirstTeamIgnoresDead(t *testing.T) {
	b := newBattle(2)
	addPlayer(b, "a1", game.TeamA, 5)
	addPlayer(b, "a2", game.TeamA, 5).HP = 0
	addPlayer(b, "b1", game.TeamB, 3)
	addPlayer(b, "b2", game.TeamB, 3)
	if got := FirstTeam(b); got != game.TeamB {
		t.Fatalf("expected B (6) over A (5 living), got %s", got)
	}
}

func TestRollInitiativeRerollsTies(t *testing.T) {
	p1 := &game.Player{ID: "x", Stats: game.Stats{Agility: 3}}
	p2 := &game.Player{ID: "y", Stats: game.Stats{Agility: 3}}
	seq := dice.NewSequence(10, 10, 12, 8)
	RollInitiative(seq, []*game.Player{p1, p2})
	if p1.Initiative == p2.Initiative {
		t.Fatalf("tie not broken: %d", p1.Initiative)
	}
	if p1.Initiative != 15 || p2.Initiative != 11 {
		t.Fatalf("expected rerolled values 15/11, got %d/%d", p1.Initiative, p2.Initiative)
	}
	if seq.Calls() != 4 {
		t.Fatalf("expected 4 rolls, got %d", seq.Calls())
	}
}

func TestRollInitiativeBoundedThenDeterministic(t *testing.T) {
	players := []*game.Player{
		{ID: "c", Stats: game.Stats{Agility: 3}},
		{ID: "a", Stats: game.Stats{Agility: 3}},
		{ID: "b", Stats: game.Stats{Agility: 3}},
	}
	seq := dice.NewSequence(9)
	RollInitiative(seq, players)
	if seq.Calls() != 3+3*(1+dice.MaxRerolls) {
		t.Fatalf("expected bounded rerolls, got %d calls", seq.Calls())
	}
	SortByInitiative(players)
	if players[0].ID != "a" || players[1].ID != "b" || players[2].ID != "c" {
		t.Fatalf("expected id order after exhausted rerolls, got %s %s %s", players[0].ID, players[1].ID, players[2].ID)
	}
}

func TestRollInitiativeRerollsOnlyTiedPlayers(t *testing.T) {
	players := []*game.Player{
		{ID: "x", Stats: game.Stats{Agility: 3}},
		{ID: "y", Stats: game.Stats{Agility: 3}},
		{ID: "z", Stats: game.Stats{Agility: 1}},
	}
	// x and y tie at 13; z sits at 6. x's first reroll (3) would land on z
	// and is rejected, so x rerolls again.
	seq := dice.NewSequence(10, 10, 5, 3, 15, 2)
	RollInitiative(seq, players)
	if players[0].Initiative != 18 || players[1].Initiative != 5 || players[2].Initiative != 6 {
		t.Fatalf("unexpected initiatives %d/%d/%d", players[0].Initiative, players[1].Initiative, players[2].Initiative)
	}
	if seq.Calls() != 6 {
		t.Fatalf("expected 6 rolls, got %d", seq.Calls())
	}
}

func TestSortByInitiativeIgnoresRawAgility(t *testing.T) {
	fast := &game.Player{ID: "a", Stats: game.Stats{Agility: 5}}
	lucky := &game.Player{ID: "b", Stats: game.Stats{Agility: 3}}
	players := []*game.Player{fast, lucky}
	RollInitiative(dice.NewSequence(1, 20), players)
	if fast.Initiative != 6 || lucky.Initiative != 23 {
		t.Fatalf("unexpected initiatives %d/%d", fast.Initiative, lucky.Initiative)
	}
	SortByInitiative(players)
	if players[0] != lucky || players[1] != fast {
		t.Fatalf("higher initiative should act first, got %s,%s", players[0].ID, players[1].ID)
	}
}

func TestInitFirstTurnPinsOnlyTheOpener(t *testing.T) {
	b := newBattle(3)
	addPlayer(b, "a1", game.TeamA, 5)
	addPlayer(b, "a2", game.TeamA, 2)
	addPlayer(b, "a3", game.TeamA, 4)
	addPlayer(b, "b1", game.TeamB, 5)
	addPlayer(b, "b2", game.TeamB, 1)
	addPlayer(b, "b3", game.TeamB, 1)
	// Team A rolls 1, 20, 10; team B rolls 1, 20, 10.
	seq := dice.NewSequence(1, 20, 10, 1, 20, 10)
	if _, err := InitFirstTurn(b, seq, time.Now()); err != nil {
		t.Fatal(err)
	}
	want := []string{"a1", "a2", "a3", "b2", "b3", "b1"}
	for i, id := range want {
		if b.Order[i] != id {
			t.Fatalf("expected order %v, got %v", want, b.Order)
		}
	}
	if b.Turn.ActorID != "a1" {
		t.Fatalf("most agile member of the leading team opens, got %s", b.Turn.ActorID)
	}
}

func TestNextTurnSkipsDeadAndCountsRounds(t *testing.T) {
	b := newBattle(2)
	addPlayer(b, "a1", game.TeamA, 5)
	addPlayer(b, "a2", game.TeamA, 4)
	addPlayer(b, "b1", game.TeamB, 3)
	addPlayer(b, "b2", game.TeamB, 2)
	if _, err := InitFirstTurn(b, dice.NewSequence(10), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b.Player("a2").HP = 0

	seen := []string{b.Turn.ActorID}
	for i := 0; i < 5; i++ {
		FinishTurn(b)
		adv, ok := NextTurn(b, time.Now())
		if !ok {
			t.Fatalf("expected a next actor")
		}
		if !b.Player(adv.ActorID).Alive() {
			t.Fatalf("selected dead participant %s", adv.ActorID)
		}
		seen = append(seen, adv.ActorID)
	}
	want := []string{"a1", "b1", "b2", "a1", "b1", "b2"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("turn sequence = %v, want %v", seen, want)
		}
	}
	if b.Turn.Round != 2 {
		t.Fatalf("expected round 2 after one wrap, got %d", b.Turn.Round)
	}
	if b.Turn.Number != 6 || b.Turn.Completed != 5 {
		t.Fatalf("expected turn 6 with 5 completed, got %+v", b.Turn)
	}
}

func TestNextTurnResetsTeamPhase(t *testing.T) {
	b := newBattle(2)
	addPlayer(b, "a1", game.TeamA, 5)
	addPlayer(b, "a2", game.TeamA, 4)
	addPlayer(b, "b1", game.TeamB, 3)
	addPlayer(b, "b2", game.TeamB, 2)
	if _, err := InitFirstTurn(b, dice.NewSequence(10), time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := PendingInPhase(b); len(got) != 2 {
		t.Fatalf("expected 2 pending in A phase, got %v", got)
	}
	FinishTurn(b)
	if adv, _ := NextTurn(b, time.Now()); adv.TeamChanged {
		t.Fatalf("a1 -> a2 stays in team A")
	}
	if got := PendingInPhase(b); len(got) != 1 || got[0] != "a2" {
		t.Fatalf("expected a2 pending, got %v", got)
	}
	FinishTurn(b)
	adv, _ := NextTurn(b, time.Now())
	if !adv.TeamChanged || b.Turn.Team != game.TeamB {
		t.Fatalf("expected switch to team B, got %+v", adv)
	}
	if got := PendingInPhase(b); len(got) != 2 {
		t.Fatalf("expected 2 pending in B phase, got %v", got)
	}
}

func TestIsBattleOver(t *testing.T) {
	b := newBattle(1)
	addPlayer(b, "a1", game.TeamA, 3)
	d := addPlayer(b, "b1", game.TeamB, 3)
	now := time.Now()
	b.StartedAt = now
	b.Phase = game.PhaseActive

	if over, _ := IsBattleOver(b, now); over {
		t.Fatalf("fresh battle should not be over")
	}

	b.Settings.MaxTurns = 3
	b.Turn.Completed = 3
	if over, why := IsBattleOver(b, now); !over || why != EndMaxTurns {
		t.Fatalf("expected max_turns end, got %v %s", over, why)
	}
	b.Settings.MaxTurns = 0

	b.Settings.BattleDuration = time.Minute
	if over, why := IsBattleOver(b, now.Add(2*time.Minute)); !over || why != EndTimeout {
		t.Fatalf("expected timeout end, got %v %s", over, why)
	}

	d.HP = 0
	if over, why := IsBattleOver(b, now); !over || why != EndElimination {
		t.Fatalf("expected elimination, got %v %s", over, why)
	}
}

func TestDetermineWinner(t *testing.T) {
	b := newBattle(2)
	a1 := addPlayer(b, "a1", game.TeamA, 3)
	a2 := addPlayer(b, "a2", game.TeamA, 3)
	b1 := addPlayer(b, "b1", game.TeamB, 3)
	b2 := addPlayer(b, "b2", game.TeamB, 3)

	a1.HP, a2.HP, b1.HP, b2.HP = 50, 40, 60, 20
	if w := DetermineWinner(b); w != game.TeamA {
		t.Fatalf("expected A on hp 90 vs 80, got %s", w)
	}
	b2.HP = 30
	if w := DetermineWinner(b); w != game.Draw {
		t.Fatalf("expected draw on equal hp, got %s", w)
	}
	a1.HP, a2.HP = 0, 0
	if w := DetermineWinner(b); w != game.TeamB {
		t.Fatalf("expected B on elimination, got %s", w)
	}
}
