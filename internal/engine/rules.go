package engine

import (
	"errors"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/dice"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/google/uuid"
)

var (
	ErrUnknownPlayer = errors.New("unknown player")
	ErrActorDown     = errors.New("acting player is down")
	ErrInvalidTarget = errors.New("invalid target")
)

// Engine evaluates the combat rules against a battle. It holds no battle state;
// callers serialize access to the battle they pass in.
type Engine struct {
	dice    dice.Roller
	catalog game.Catalog
	now     func() time.Time
	newID   func() string
}

// New returns an Engine rolling with r and resolving items from catalog.
func New(r dice.Roller, catalog game.Catalog) *Engine {
	if catalog == nil {
		catalog = game.DefaultCatalog()
	}
	return &Engine{dice: r, catalog: catalog, now: time.Now, newID: uuid.NewString}
}

func (e *Engine) Catalog() game.Catalog { return e.catalog }

func (e *Engine) d20() int { return e.dice.Roll(dice.D20) }

// Breakdown is a stat-times-multiplier plus d20 calculation kept for the log.
type Breakdown struct {
	Stat       int     `json:"stat"`
	Multiplier float64 `json:"multiplier"`
	Roll       int     `json:"roll"`
	Total      int     `json:"total"`
}

type CritCheck struct {
	Roll      int  `json:"roll"`
	Threshold int  `json:"threshold"`
	Critical  bool `json:"critical"`
}

type EvasionCheck struct {
	Agility     int  `json:"agility"`
	Roll        int  `json:"roll"`
	Total       int  `json:"total"`
	AttackPower int  `json:"attack_power"`
	Evaded      bool `json:"evaded"`
}

// FinalAttackPower is attack x (2 if boosted) + d20.
func (e *Engine) FinalAttackPower(attacker *game.Player, boosted bool) Breakdown {
	return e.attackPower(attacker, multiplierFor(boosted))
}

func (e *Engine) attackPower(attacker *game.Player, mult float64) Breakdown {
	if mult <= 0 {
		mult = 1
	}
	base := attackWithModifiers(attacker, mult)
	roll := e.d20()
	return Breakdown{Stat: attacker.Stats.Attack, Multiplier: mult, Roll: roll, Total: base + roll}
}

// CheckCriticalHit rolls its own d20; critical iff roll >= 20 - floor(luck/2).
func (e *Engine) CheckCriticalHit(attacker *game.Player) CritCheck {
	th := critThreshold(attacker.Stats.Luck)
	roll := e.d20()
	return CritCheck{Roll: roll, Threshold: th, Critical: roll >= th}
}

// CheckEvasion succeeds iff agility + d20 >= the attacker's final power.
func (e *Engine) CheckEvasion(defender *game.Player, attackPower int) EvasionCheck {
	roll := e.d20()
	total := defender.Stats.Agility + roll
	return EvasionCheck{Agility: defender.Stats.Agility, Roll: roll, Total: total, AttackPower: attackPower, Evaded: total >= attackPower}
}

// DefenseValue is defense x (2 if boosted) + d20.
func (e *Engine) DefenseValue(defender *game.Player, boosted bool) Breakdown {
	return e.defenseValue(defender, multiplierFor(boosted))
}

func (e *Engine) defenseValue(defender *game.Player, mult float64) Breakdown {
	if mult <= 0 {
		mult = 1
	}
	base := defenseWithModifiers(defender, mult)
	roll := e.d20()
	return Breakdown{Stat: defender.Stats.Defense, Multiplier: mult, Roll: roll, Total: base + roll}
}

// CounterAttack is attack + d20 with no boosts and no mitigation.
func (e *Engine) CounterAttack(defender *game.Player) Breakdown {
	roll := e.d20()
	return Breakdown{Stat: defender.Stats.Attack, Multiplier: 1, Roll: roll, Total: defender.Stats.Attack + roll}
}

// ComputeDamage doubles power on a critical, subtracts defense and never
// returns less than 1 for a connecting hit.
func ComputeDamage(attackPower int, critical bool, defenseValue int) int {
	base := attackPower
	if critical {
		base = attackPower * 2
	}
	dmg := base - defenseValue
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// DamageInput is the keyed form accepted by ComputeDamageLegacy.
type DamageInput struct {
	AttackPower  int  `json:"attack_power"`
	Critical     bool `json:"critical"`
	DefenseValue int  `json:"defense_value"`
}

// ComputeDamageLegacy accepts the keyed form older clients send and
// delegates to ComputeDamage.
func ComputeDamageLegacy(in DamageInput) int {
	return ComputeDamage(in.AttackPower, in.Critical, in.DefenseValue)
}
