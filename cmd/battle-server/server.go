package main

import (
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
)

// startSweeper periodically removes ended battles past their retention
// window and purges spent one-time codes.
func startSweeper(svc interface{ Sweep(time.Time) int }, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for now := range ticker.C {
			if n := svc.Sweep(now); n > 0 {
				logging.Info("swept ended battles", logging.Fields{constants.LogFieldCount: n})
			}
		}
	}()
}
