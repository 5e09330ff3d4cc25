package storage

import (
	"errors"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

var (
	ErrCodeNotFound = errors.New("one-time code not found")
	ErrCodeUsed     = errors.New("one-time code already used")
	ErrCodeExpired  = errors.New("one-time code expired")
	ErrCodeMismatch = errors.New("one-time code does not match role or name")
)

// CodeRepository persists one-time login codes.
type CodeRepository interface {
	// SaveCode stores c, replacing any previous code with the same battle and value.
	SaveCode(c *game.AccessCode) error
	// ConsumeCode redeems the code for role. A non-empty name must match the
	// name a player code was issued for.
	// Exactly one concurrent caller can succeed for a given code.
	ConsumeCode(battleID, code string, role game.Role, name string, now time.Time) (*game.AccessCode, error)
	// DeleteCodesForBattle removes every code of a battle.
	DeleteCodesForBattle(battleID string) error
	// PurgeExpiredCodes removes codes that expired or were used before now.
	PurgeExpiredCodes(now time.Time) (int64, error)
}
