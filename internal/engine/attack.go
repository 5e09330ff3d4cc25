package engine

import (
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

// AttackState names the steps of a single attack.
type AttackState string

const (
	StateIdle           AttackState = "idle"
	StatePowerComputed  AttackState = "power_computed"
	StateEvaded         AttackState = "evaded"
	StateDefenseApplied AttackState = "defense_applied"
	StateDamageApplied  AttackState = "damage_applied"
	StateCounterApplied AttackState = "counter_applied"
)

type CounterOutcome struct {
	Roll             Breakdown `json:"roll"`
	Damage           int       `json:"damage"`
	AttackerDefeated bool      `json:"attacker_defeated"`
}

type AttackOutcome struct {
	AttackerID       string          `json:"attacker_id"`
	DefenderID       string          `json:"defender_id"`
	Power            Breakdown       `json:"power"`
	Evasion          EvasionCheck    `json:"evasion"`
	Crit             *CritCheck      `json:"crit,omitempty"`
	Defense          *Breakdown      `json:"defense,omitempty"`
	Damage           int             `json:"damage"`
	DefenderDefeated bool            `json:"defender_defeated"`
	Counter          *CounterOutcome `json:"counter,omitempty"`
	Trace            []AttackState   `json:"trace"`
	Lines            []string        `json:"lines"`
}

// Evaded reports whether the defender dodged the attack.
func (o AttackOutcome) Evaded() bool { return o.Evasion.Evaded }

// Attack runs the full pipeline: power, evasion, critical, defense, damage and
// an optional counter-attack. mult is the attack multiplier forced by the caller
// (1 for a plain attack); with mult <= 1 a pending attack-boost effect on the
// attacker is spent instead.
func (e *Engine) Attack(b *game.Battle, attackerID, defenderID string, mult float64) (AttackOutcome, error) {
	attacker := b.Player(attackerID)
	defender := b.Player(defenderID)
	if attacker == nil {
		return AttackOutcome{}, ErrUnknownPlayer
	}
	if !attacker.Alive() {
		return AttackOutcome{}, ErrActorDown
	}
	if defender == nil || !defender.Alive() || defender.Team == attacker.Team {
		return AttackOutcome{}, ErrInvalidTarget
	}
	ac := newActionContext(b)
	out := e.resolveAttack(ac, attacker, defender, mult)
	out.Lines = ac.lines
	return out, nil
}

func (e *Engine) resolveAttack(ac *actionContext, attacker, defender *game.Player, mult float64) AttackOutcome {
	out := AttackOutcome{AttackerID: attacker.ID, DefenderID: defender.ID, Trace: []AttackState{StateIdle}}

	if mult <= 1 {
		mult = 1
		if eff := ac.b.ActiveEffect(attacker.ID, game.EffectAttackBoost); eff != nil {
			mult = eff.Multiplier
			ac.b.ConsumeEffect(eff)
			ac.addf("%s's attack boost (x%.0f) is spent", displayName(attacker), mult)
		}
	}

	out.Power = e.attackPower(attacker, mult)
	out.Trace = append(out.Trace, StatePowerComputed)

	out.Evasion = e.CheckEvasion(defender, out.Power.Total)
	if out.Evasion.Evaded {
		out.Trace = append(out.Trace, StateEvaded, StateIdle)
		ac.addf("%s attacks %s: power %d (ATK %d x%.0f + d20 %d)", displayName(attacker), displayName(defender),
			out.Power.Total, out.Power.Stat, out.Power.Multiplier, out.Power.Roll)
		ac.addf("%s evades (AGI %d + d20 %d = %d)", displayName(defender), out.Evasion.Agility, out.Evasion.Roll, out.Evasion.Total)
		return out
	}

	crit := e.CheckCriticalHit(attacker)
	out.Crit = &crit

	defBoost := ac.b.ActiveEffect(defender.ID, game.EffectDefenseBoost)
	defMult := 1.0
	if defBoost != nil {
		defMult = defBoost.Multiplier
	}
	def := e.defenseValue(defender, defMult)
	out.Defense = &def
	out.Trace = append(out.Trace, StateDefenseApplied)

	dmg := ComputeDamage(out.Power.Total, crit.Critical, def.Total)
	out.Damage = defender.Damage(dmg)
	out.Trace = append(out.Trace, StateDamageApplied)
	ac.addf("%s attacks %s: power %d (ATK %d x%.0f + d20 %d)%s vs defense %d (DEF %d x%.0f + d20 %d); %d damage",
		displayName(attacker), displayName(defender), out.Power.Total, out.Power.Stat, out.Power.Multiplier, out.Power.Roll,
		critTag(crit.Critical), def.Total, def.Stat, def.Multiplier, def.Roll, out.Damage)

	if defBoost != nil {
		ac.b.ConsumeEffect(defBoost)
		ac.addf("%s's defense boost absorbs the hit and is spent", displayName(defender))
	}

	if !defender.Alive() {
		out.DefenderDefeated = true
		ac.b.ClearEffects(defender.ID)
		ac.addf("%s is defeated!", displayName(defender))
		out.Trace = append(out.Trace, StateIdle)
		return out
	}

	if defBoost != nil {
		ctr := e.CounterAttack(defender)
		applied := attacker.Damage(ctr.Total)
		out.Counter = &CounterOutcome{Roll: ctr, Damage: applied, AttackerDefeated: !attacker.Alive()}
		out.Trace = append(out.Trace, StateCounterApplied)
		ac.addf("%s counter-attacks %s for %d damage (ATK %d + d20 %d)", displayName(defender), displayName(attacker), applied, ctr.Stat, ctr.Roll)
		if !attacker.Alive() {
			ac.b.ClearEffects(attacker.ID)
			ac.addf("%s is defeated!", displayName(attacker))
		}
	}
	out.Trace = append(out.Trace, StateIdle)
	return out
}
