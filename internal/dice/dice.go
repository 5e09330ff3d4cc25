// Package dice provides the die-roll primitive used by combat and initiative.
package dice

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	D20 = 20
	// D100 is used for percentile success checks.
	D100 = 100

	// MaxRerolls bounds RollWithReroll so a rejecting predicate cannot spin forever.
	MaxRerolls = 10
)

// Roller produces uniform die rolls in [1, sides].
//
// Implementations must be safe for concurrent use.
type Roller interface {
	Roll(sides int) int
}

// RerollResult is the audit trail of RollWithReroll.
type RerollResult struct {
	Final    int
	Rerolled bool
	Sequence []int
}

// Random is a Roller backed by a seeded math/rand source.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Roller seeded with seed. A zero seed uses the clock.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Roll returns a value in [1, sides]. It panics when sides < 1.
func (r *Random) Roll(sides int) int {
	mustSides(sides)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(sides) + 1
}

// RollWithReroll rolls once and keeps rolling while reject returns true for the
// latest value, at most MaxRerolls extra times. A nil reject never rerolls.
func RollWithReroll(r Roller, sides int, reject func(int) bool) RerollResult {
	v := r.Roll(sides)
	res := RerollResult{Final: v, Sequence: []int{v}}
	if reject == nil {
		return res
	}
	for i := 0; i < MaxRerolls && reject(res.Final); i++ {
		v = r.Roll(sides)
		res.Final = v
		res.Rerolled = true
		res.Sequence = append(res.Sequence, v)
	}
	return res
}

func mustSides(sides int) {
	if sides < 1 {
		panic(fmt.Sprintf("dice: sides must be >= 1, got %d", sides))
	}
}
