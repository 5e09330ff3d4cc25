package engine

import "github.com/CriminalTalent/battle-system-sub001/internal/game"

// --- Modifier helpers --------------------------------------------------

// BoostMultiplier is applied to attack or defense while boosted.
const BoostMultiplier = 2.0

func multiplierFor(boosted bool) float64 {
	if boosted {
		return BoostMultiplier
	}
	return 1.0
}

func attackWithModifiers(p *game.Player, mult float64) int {
	if mult <= 0 {
		mult = 1
	}
	a := int(float64(p.Stats.Attack) * mult)
	if a < 0 {
		a = 0
	}
	return a
}

func defenseWithModifiers(p *game.Player, mult float64) int {
	if mult <= 0 {
		mult = 1
	}
	d := int(float64(p.Stats.Defense) * mult)
	if d < 0 {
		d = 0
	}
	return d
}

// critThreshold is 20 - floor(luck/2), kept within [critFloor, 20].
func critThreshold(luck int) int {
	if luck < 0 {
		luck = 0
	}
	t := 20 - luck/2
	if t < critFloor {
		t = critFloor
	}
	if t > 20 {
		t = 20
	}
	return t
}

const critFloor = 2
