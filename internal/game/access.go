package game

import "time"

// AccessCode is a one-time login code issued by an admin for one role of a
// battle. Player codes carry the character name the holder is bound to.
type AccessCode struct {
	ID        uint       `gorm:"primaryKey" json:"-"`
	BattleID  string     `gorm:"uniqueIndex:idx_access_codes_battle_code;not null" json:"battle_id"`
	Code      string     `gorm:"uniqueIndex:idx_access_codes_battle_code;size:8;not null" json:"code"`
	Role      Role       `gorm:"not null" json:"role"`
	Name      string     `json:"name,omitempty"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the code can still be redeemed at now.
func (a *AccessCode) Usable(now time.Time) bool {
	return a.UsedAt == nil && now.Before(a.ExpiresAt)
}
