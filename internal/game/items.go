package game

type ItemKind string

const (
	ItemHeal         ItemKind = "heal"
	ItemAttackBoost  ItemKind = "attack_boost"
	ItemDefenseBoost ItemKind = "defense_boost"
)

func (k ItemKind) Valid() bool {
	return k == ItemHeal || k == ItemAttackBoost || k == ItemDefenseBoost
}

// ItemDef describes a consumable. SuccessRate is a percentage in [0,100].
type ItemDef struct {
	Key          string   `json:"key"`
	Name         string   `json:"name"`
	Kind         ItemKind `json:"kind"`
	SuccessRate  int      `json:"success_rate"`
	Amount       int      `json:"amount"`
	Multiplier   float64  `json:"multiplier"`
	Charges      int      `json:"charges"`
	Immediate    bool     `json:"immediate"`
	DefaultCount int      `json:"default_count"`
}

// NeedsEnemyTarget reports whether using the item requires a living opponent.
func (d ItemDef) NeedsEnemyTarget() bool {
	return d.Kind == ItemAttackBoost && d.Immediate
}

const (
	ItemKeyHealPotion     = "heal_potion"
	ItemKeyAttackBooster  = "attack_booster"
	ItemKeyDefenseBooster = "defense_booster"
)

type Catalog map[string]ItemDef

// DefaultCatalog is used when the configuration file lists no items.
func DefaultCatalog() Catalog {
	return Catalog{
		ItemKeyHealPotion:     {Key: ItemKeyHealPotion, Name: "Heal Potion", Kind: ItemHeal, SuccessRate: 100, Amount: 10, DefaultCount: 1},
		ItemKeyAttackBooster:  {Key: ItemKeyAttackBooster, Name: "Attack Booster", Kind: ItemAttackBoost, SuccessRate: 10, Multiplier: 2, Charges: 1, Immediate: true, DefaultCount: 1},
		ItemKeyDefenseBooster: {Key: ItemKeyDefenseBooster, Name: "Defense Booster", Kind: ItemDefenseBoost, SuccessRate: 10, Multiplier: 2, Charges: 1, DefaultCount: 1},
	}
}

func (c Catalog) Lookup(key string) (ItemDef, bool) {
	d, ok := c[key]
	return d, ok
}

// DefaultInventory returns a fresh inventory holding every item's default count.
func (c Catalog) DefaultInventory() map[string]int {
	inv := make(map[string]int, len(c))
	for k, d := range c {
		if d.DefaultCount > 0 {
			inv[k] = d.DefaultCount
		}
	}
	return inv
}
