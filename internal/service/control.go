package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

// MaxChatRunes bounds a chat message after trimming.
const MaxChatRunes = 500

// PauseBattle freezes every clock of an active battle.
func (s *BattleService) PauseBattle(battleID string) error {
	return s.mutate(battleID, func(b *game.Battle, sess *session, m *mutation) error {
		if b.Phase != game.PhaseActive {
			return ErrNotActive
		}
		sess.timers.PauseAll()
		b.Phase = game.PhasePaused
		b.PausedAt = m.now
		m.log(game.LogSystem, "Battle paused")
		return nil
	})
}

// ResumeBattle restarts the clocks with the time they had left.
func (s *BattleService) ResumeBattle(battleID string) error {
	return s.mutate(battleID, func(b *game.Battle, sess *session, m *mutation) error {
		if b.Phase != game.PhasePaused {
			return ErrNotPaused
		}
		if !b.PausedAt.IsZero() {
			b.PausedTotal += m.now.Sub(b.PausedAt)
		}
		b.PausedAt = time.Time{}
		b.Phase = game.PhaseActive
		sess.timers.ResumeAll()
		m.log(game.LogSystem, "Battle resumed")
		s.applyLateExpiriesLocked(b, sess, m)
		return nil
	})
}

// NormalizeChat trims text and checks its length.
func NormalizeChat(text string) (string, error) {
	t := strings.TrimSpace(text)
	if n := utf8.RuneCountInString(t); n == 0 || n > MaxChatRunes {
		return "", ErrInvalidChat
	}
	return t, nil
}

// Chat appends a message from sender to the battle chat.
func (s *BattleService) Chat(battleID, sender, text string, senderType game.Role) (*game.ChatEntry, error) {
	t, err := NormalizeChat(text)
	if err != nil {
		return nil, err
	}
	if !senderType.Valid() {
		return nil, ErrInvalidRole
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		sender = string(senderType)
	}
	var entry game.ChatEntry
	err = s.mutate(battleID, func(b *game.Battle, _ *session, m *mutation) error {
		entry = b.AppendChat(sender, senderType, m.now, t)
		m.emit(broadcast.ChatMessage, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
