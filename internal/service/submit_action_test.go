package service

import (
	"errors"
	"testing"

	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/config"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

// duel starts a 1v1 where Ayla (attack 5, agility 5) always acts first
// against Bruno (defense 1, agility 1, bruno hp).
func duel(t *testing.T, f *fixture, brunoHP int) string {
	t.Helper()
	snap, err := f.svc.CreateBattle("1v1", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddCharacter(snap.ID, CharacterInput{Team: "A", Name: "Ayla", Stats: game.Stats{Attack: 5, Defense: 3, Agility: 5, Luck: 1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AddCharacter(snap.ID, CharacterInput{Team: "B", Name: "Bruno", HP: brunoHP, Stats: game.Stats{Attack: 2, Defense: 1, Agility: 1, Luck: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.StartBattle(snap.ID); err != nil {
		t.Fatal(err)
	}
	f.pub.reset()
	return snap.ID
}

func TestPlayerActionAttack(t *testing.T) {
	f := newFixture(t, nil)
	id := duel(t, f, 100)
	ayla, bruno := f.idOf(t, id, "Ayla"), f.idOf(t, id, "Bruno")

	res, err := f.svc.PlayerAction(id, ayla, Action{Type: "attack", TargetID: bruno, Turn: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// power 5+10 against evasion 1+10, defense 1+10: 4 damage.
	if res.Attack == nil || res.Attack.Damage != 4 || res.NextActor != bruno || res.Ended {
		t.Fatalf("unexpected result %+v", res)
	}
	if hp := f.player(t, id, "Bruno").HP; hp != 96 {
		t.Fatalf("expected bruno at 96, got %d", hp)
	}
	if f.pub.count(broadcast.StateUpdated) != 1 {
		t.Fatalf("expected exactly one state update, got %d", f.pub.count(broadcast.StateUpdated))
	}
	if f.pub.count(broadcast.LogAppended) < 2 {
		t.Fatalf("expected combat and turn log lines")
	}
	s := f.snapshot(t, id)
	if s.Turn != 2 || s.TurnTeam != game.TeamB {
		t.Fatalf("turn should pass to team B, got %+v", s)
	}
}

func TestPlayerActionRejections(t *testing.T) {
	f := newFixture(t, nil)
	id := duel(t, f, 100)
	ayla, bruno := f.idOf(t, id, "Ayla"), f.idOf(t, id, "Bruno")

	cases := []struct {
		name   string
		player string
		action Action
		want   error
	}{
		{"unknown type", ayla, Action{Type: "dance"}, ErrInvalidAction},
		{"not your turn", bruno, Action{Type: "pass"}, ErrNotYourTurn},
		{"stale turn", ayla, Action{Type: "pass", Turn: 7}, ErrStaleTurn},
		{"unknown player", "ghost", Action{Type: "pass"}, ErrPlayerNotFound},
		{"self target", ayla, Action{Type: "attack", TargetID: ayla}, ErrInvalidTarget},
		{"unknown item", ayla, Action{Type: "useItem", Item: "sword"}, ErrUnknownItem},
		{"enemy target for booster", ayla, Action{Type: "use_item", Item: game.ItemKeyAttackBooster}, ErrItemDeclined},
	}
	for _, c := range cases {
		if _, err := f.svc.PlayerAction(id, c.player, c.action); !errors.Is(err, c.want) {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, err)
		}
	}
	if n := len(f.pub.events); n != 0 {
		t.Fatalf("rejected actions must not publish, got %d events", n)
	}
	p := f.player(t, id, "Ayla")
	if p.Inventory[game.ItemKeyAttackBooster] != 1 || p.HasActed {
		t.Fatalf("rejected actions must not change state: %+v", p)
	}
	if _, err := f.svc.PlayerAction("nope", ayla, Action{Type: "pass"}); !errors.Is(err, ErrBattleNotFound) {
		t.Fatalf("expected battle not found, got %v", err)
	}
}

func TestPlayerActionUseItem(t *testing.T) {
	f := newFixture(t, nil)
	id := duel(t, f, 100)
	ayla := f.idOf(t, id, "Ayla")

	res, err := f.svc.PlayerAction(id, ayla, Action{Type: "useItem", Item: game.ItemKeyHealPotion})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Item == nil || !res.Item.Succeeded || res.Item.TargetID != ayla {
		t.Fatalf("unexpected item result %+v", res.Item)
	}
	if inv := f.player(t, id, "Ayla").Inventory[game.ItemKeyHealPotion]; inv != 0 {
		t.Fatalf("potion should be consumed, %d left", inv)
	}
	bruno := f.idOf(t, id, "Bruno")
	if _, err := f.svc.PlayerAction(id, bruno, Action{Type: "pass"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.PlayerAction(id, ayla, Action{Type: "useItem", Item: game.ItemKeyHealPotion}); !errors.Is(err, ErrItemDeclined) {
		t.Fatalf("expected insufficient item decline, got %v", err)
	}
}

func TestPlayerActionEliminationEndsBattle(t *testing.T) {
	f := newFixture(t, nil)
	id := duel(t, f, 3)
	ayla, bruno := f.idOf(t, id, "Ayla"), f.idOf(t, id, "Bruno")

	res, err := f.svc.PlayerAction(id, ayla, Action{Type: "attack", TargetID: bruno})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Ended || res.Winner != game.TeamA {
		t.Fatalf("expected team A to win, got %+v", res)
	}
	s := f.snapshot(t, id)
	if s.Phase != game.PhaseEnded || s.EndReason != "elimination" {
		t.Fatalf("unexpected end state %+v", s)
	}
	if f.pub.count(broadcast.BattleEnded) != 1 || f.pub.count(broadcast.StateUpdated) != 1 {
		t.Fatalf("expected one battle_ended and one state update")
	}
	if _, err := f.svc.PlayerAction(id, bruno, Action{Type: "pass"}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected not active after the end, got %v", err)
	}
}

func TestMaxTurnsEndsBattle(t *testing.T) {
	f := newFixture(t, func(d *config.BattleDefaults) { d.MaxTurns = 3 })
	id := duel(t, f, 100)
	for i := 0; i < 3; i++ {
		s := f.snapshot(t, id)
		if _, err := f.svc.PlayerAction(id, s.CurrentID, Action{Type: "pass", Turn: s.Turn}); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	s := f.snapshot(t, id)
	if s.Phase != game.PhaseEnded || s.EndReason != "max_turns" || s.Winner != game.Draw {
		t.Fatalf("expected a draw on max turns, got %+v", s)
	}
}

func TestTurnsWrapIntoNewRound(t *testing.T) {
	f := newFixture(t, nil)
	id := f.started(t, "2v2", []string{"Ayla", "Caio"}, []string{"Bruno", "Dora"})
	for _, name := range []string{"Ayla", "Caio", "Bruno", "Dora"} {
		if got := f.current(t, id); got != name {
			t.Fatalf("expected %s to act, got %s", name, got)
		}
		if _, err := f.svc.PlayerAction(id, f.idOf(t, id, name), Action{Type: "pass"}); err != nil {
			t.Fatal(err)
		}
	}
	s := f.snapshot(t, id)
	if s.Round != 2 || f.current(t, id) != "Ayla" || s.Turn != 5 {
		t.Fatalf("expected round 2 back at Ayla, got round %d turn %d", s.Round, s.Turn)
	}
}
