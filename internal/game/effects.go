package game

// ActiveEffect returns the first effect of type t owned by ownerID that still has charges.
func (b *Battle) ActiveEffect(ownerID string, t EffectType) *Effect {
	for _, e := range b.Effects {
		if e.OwnerID == ownerID && e.Type == t && e.Charges > 0 {
			return e
		}
	}
	return nil
}

// AddEffect registers e and refreshes the owner's buff view.
func (b *Battle) AddEffect(e *Effect) {
	b.Effects = append(b.Effects, e)
	b.refreshBuff(e.OwnerID)
}

// ConsumeEffect spends one charge of e and purges it at zero.
func (b *Battle) ConsumeEffect(e *Effect) {
	if e == nil || e.Charges <= 0 {
		return
	}
	e.Charges--
	if e.Charges == 0 {
		kept := b.Effects[:0]
		for _, x := range b.Effects {
			if x != e {
				kept = append(kept, x)
			}
		}
		b.Effects = kept
	}
	b.refreshBuff(e.OwnerID)
}

// ClearEffects drops every effect owned by ownerID (used when a player dies).
func (b *Battle) ClearEffects(ownerID string) {
	kept := b.Effects[:0]
	for _, x := range b.Effects {
		if x.OwnerID != ownerID {
			kept = append(kept, x)
		}
	}
	b.Effects = kept
	b.refreshBuff(ownerID)
}

func (b *Battle) refreshBuff(ownerID string) {
	p := b.Player(ownerID)
	if p == nil {
		return
	}
	buff := Buff{AttackMultiplier: 1, DefenseMultiplier: 1}
	for _, e := range b.Effects {
		if e.OwnerID != ownerID || e.Charges <= 0 {
			continue
		}
		switch e.Type {
		case EffectAttackBoost:
			buff.AttackMultiplier = e.Multiplier
		case EffectDefenseBoost:
			buff.DefenseMultiplier = e.Multiplier
		}
		buff.Remaining += e.Charges
	}
	p.Buff = buff
}
