package engine

import (
	"fmt"

	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

// --- Action context and helpers ---------------------------------------
type actionContext struct {
	b     *game.Battle
	lines []string
}

func newActionContext(b *game.Battle) *actionContext {
	return &actionContext{b: b, lines: make([]string, 0, 8)}
}

func (ac *actionContext) add(msg string) { ac.lines = append(ac.lines, msg) }

func (ac *actionContext) addf(format string, args ...interface{}) {
	ac.add(fmt.Sprintf(format, args...))
}

func displayName(p *game.Player) string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

func critTag(crit bool) string {
	if crit {
		return " (CRITICAL)"
	}
	return ""
}
