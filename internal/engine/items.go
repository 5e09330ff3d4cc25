package engine

import (
	"github.com/CriminalTalent/battle-system-sub001/internal/dice"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

// Decline reasons reported by ApplyItemEffect.
const (
	ReasonUnknownItem      = "unknown item"
	ReasonInsufficientItem = "insufficient item count"
	ReasonMissingTarget    = "target required"
	ReasonInvalidTarget    = "invalid target"
	ReasonUnknownPlayer    = "unknown player"
	ReasonPlayerDown       = "player is down"
)

// ItemResult is the outcome of using an item. OK is false only for a declined
// use, in which case nothing was consumed and Reason says why.
type ItemResult struct {
	OK        bool           `json:"ok"`
	Reason    string         `json:"reason,omitempty"`
	Item      string         `json:"item"`
	Kind      game.ItemKind  `json:"kind,omitempty"`
	Roll      int            `json:"roll,omitempty"`
	Succeeded bool           `json:"succeeded"`
	TargetID  string         `json:"target_id,omitempty"`
	Healed    int            `json:"healed,omitempty"`
	Attack    *AttackOutcome `json:"attack,omitempty"`
	Effect    *game.Effect   `json:"effect,omitempty"`
	Lines     []string       `json:"lines"`
}

func declined(item, reason string) ItemResult {
	return ItemResult{OK: false, Item: item, Reason: reason}
}

// ApplyItemEffect validates and consumes one unit of itemKey from playerID's
// inventory, rolls against the item's success rate and applies the effect on
// success. The unit is consumed whether or not the roll succeeds.
func (e *Engine) ApplyItemEffect(b *game.Battle, playerID, itemKey, targetID string) ItemResult {
	user := b.Player(playerID)
	if user == nil {
		return declined(itemKey, ReasonUnknownPlayer)
	}
	if !user.Alive() {
		return declined(itemKey, ReasonPlayerDown)
	}
	def, ok := e.catalog.Lookup(itemKey)
	if !ok {
		return declined(itemKey, ReasonUnknownItem)
	}
	if user.Inventory[itemKey] <= 0 {
		return declined(itemKey, ReasonInsufficientItem)
	}
	target, reason := e.itemTarget(b, user, def, targetID)
	if reason != "" {
		return declined(itemKey, reason)
	}

	user.Inventory[itemKey]--
	ac := newActionContext(b)
	res := ItemResult{OK: true, Item: itemKey, Kind: def.Kind, TargetID: target.ID}
	res.Roll = e.dice.Roll(dice.D100)
	res.Succeeded = res.Roll <= def.SuccessRate
	if !res.Succeeded {
		ac.addf("%s uses %s but it fails (d100 %d > %d%%)", displayName(user), def.Name, res.Roll, def.SuccessRate)
		res.Lines = ac.lines
		return res
	}

	switch def.Kind {
	case game.ItemHeal:
		res.Healed = target.Heal(def.Amount)
		ac.addf("%s uses %s on %s: +%d HP (%d/%d)", displayName(user), def.Name, displayName(target), res.Healed, target.HP, target.MaxHP)
	case game.ItemAttackBoost:
		mult := def.Multiplier
		if mult <= 0 {
			mult = BoostMultiplier
		}
		if def.Immediate {
			ac.addf("%s uses %s and strikes %s with x%.0f attack", displayName(user), def.Name, displayName(target), mult)
			out := e.resolveAttack(ac, user, target, mult)
			res.Attack = &out
		} else {
			res.Effect = e.registerEffect(ac, user, def, game.EffectAttackBoost, mult)
		}
	case game.ItemDefenseBoost:
		mult := def.Multiplier
		if mult <= 0 {
			mult = BoostMultiplier
		}
		res.Effect = e.registerEffect(ac, user, def, game.EffectDefenseBoost, mult)
	}
	res.Lines = ac.lines
	return res
}

func (e *Engine) itemTarget(b *game.Battle, user *game.Player, def game.ItemDef, targetID string) (*game.Player, string) {
	if def.NeedsEnemyTarget() {
		if targetID == "" {
			return nil, ReasonMissingTarget
		}
		t := b.Player(targetID)
		if t == nil || !t.Alive() || t.Team == user.Team {
			return nil, ReasonInvalidTarget
		}
		return t, ""
	}
	if def.Kind == game.ItemHeal && targetID != "" && targetID != user.ID {
		t := b.Player(targetID)
		if t == nil || !t.Alive() || t.Team != user.Team {
			return nil, ReasonInvalidTarget
		}
		return t, ""
	}
	return user, ""
}

func (e *Engine) registerEffect(ac *actionContext, owner *game.Player, def game.ItemDef, t game.EffectType, mult float64) *game.Effect {
	charges := def.Charges
	if charges <= 0 {
		charges = 1
	}
	eff := &game.Effect{ID: e.newID(), OwnerID: owner.ID, Type: t, Multiplier: mult, Charges: charges, Source: def.Key}
	ac.b.AddEffect(eff)
	ac.addf("%s uses %s: x%.0f %s for %d hit(s)", displayName(owner), def.Name, mult, effectNoun(t), charges)
	cp := *eff
	return &cp
}

func effectNoun(t game.EffectType) string {
	if t == game.EffectAttackBoost {
		return "attack"
	}
	return "defense"
}
