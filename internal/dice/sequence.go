package dice

import "sync"

// Sequence replays fixed values in order, cycling when exhausted. Values are
// clamped into [1, sides] for the requested die. Used to script combat.
type Sequence struct {
	mu     sync.Mutex
	values []int
	next   int
	calls  int
}

// NewSequence returns a Sequence replaying values. With no values every roll is the maximum.
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

// Roll returns the next scripted value.
func (s *Sequence) Roll(sides int) int {
	mustSides(sides)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.values) == 0 {
		return sides
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	if v < 1 {
		v = 1
	}
	if v > sides {
		v = sides
	}
	return v
}

// Calls reports how many rolls were made.
func (s *Sequence) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
