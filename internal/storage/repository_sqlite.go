package storage

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/keys"
)

type sqliteRepository struct {
	db *gorm.DB
}

func NewSQLiteRepository(db *gorm.DB) CodeRepository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) SaveCode(c *game.AccessCode) error {
	// Upsert keyed by (battle_id, code): reissuing a code value resets it.
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "battle_id"}, {Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "name", "expires_at", "used_at"}),
	}).Create(c).Error
}

func (r *sqliteRepository) ConsumeCode(battleID, code string, role game.Role, name string, now time.Time) (*game.AccessCode, error) {
	var out *game.AccessCode
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var c game.AccessCode
		if err := tx.Where("battle_id = ? AND code = ?", battleID, code).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCodeNotFound
			}
			return err
		}
		if c.UsedAt != nil {
			return ErrCodeUsed
		}
		if !now.Before(c.ExpiresAt) {
			return ErrCodeExpired
		}
		if c.Role != role {
			return ErrCodeMismatch
		}
		if c.Role == game.RolePlayer && c.Name != "" && name != "" && keys.NameKey(c.Name) != keys.NameKey(name) {
			return ErrCodeMismatch
		}
		// Conditional update: only the caller that flips used_at wins.
		res := tx.Model(&game.AccessCode{}).
			Where("id = ? AND used_at IS NULL", c.ID).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCodeUsed
		}
		c.UsedAt = &now
		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sqliteRepository) DeleteCodesForBattle(battleID string) error {
	return r.db.Where("battle_id = ?", battleID).Delete(&game.AccessCode{}).Error
}

func (r *sqliteRepository) PurgeExpiredCodes(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ? OR used_at IS NOT NULL", now).Delete(&game.AccessCode{})
	return res.RowsAffected, res.Error
}
