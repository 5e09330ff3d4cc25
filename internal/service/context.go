package service

import (
	"fmt"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

type event struct {
	kind    broadcast.Kind
	payload interface{}
}

// mutation accumulates what one serialized operation changed so it can be
// published once the operation succeeds.
type mutation struct {
	b      *game.Battle
	now    time.Time
	logs   []game.LogEntry
	events []event
	// quiet skips the state_updated emission for operations that did not
	// change the battle, such as timer ticks.
	quiet bool
}

func (m *mutation) log(kind game.LogKind, text string) {
	m.logs = append(m.logs, m.b.AppendLog(kind, m.now, text))
}

func (m *mutation) logf(kind game.LogKind, format string, args ...interface{}) {
	m.log(kind, fmt.Sprintf(format, args...))
}

func (m *mutation) logLines(kind game.LogKind, lines []string) {
	for _, l := range lines {
		m.log(kind, l)
	}
}

func (m *mutation) emit(kind broadcast.Kind, payload interface{}) {
	m.events = append(m.events, event{kind: kind, payload: payload})
}
