// Package broadcast fans battle events out to subscribers. Each event is
// published once under its canonical kind; legacy names are applied per
// subscriber at encode time.
package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/dedupe"
	"github.com/CriminalTalent/battle-system-sub001/internal/keys"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
)

// Subscriber receives encoded messages. Send must be safe for concurrent use.
// Close is called once the hub drops the subscriber.
type Subscriber interface {
	Send(data []byte) error
	Close()
}

type subscription struct {
	id     string
	sub    Subscriber
	legacy bool
}

// Hub keeps the subscribers of every battle.
type Hub struct {
	now    func() time.Time
	window *dedupe.Window

	mu   sync.RWMutex
	subs map[string]map[string]*subscription
}

// NewHub returns a hub that suppresses duplicates using windows. A nil now
// uses time.Now.
func NewHub(now func() time.Time, windows map[Kind]time.Duration) *Hub {
	if now == nil {
		now = time.Now
	}
	w := dedupe.NewWindow(now, dedupe.DefaultLineWindow)
	for k, d := range windows {
		w.SetWindow(string(k), d)
	}
	return &Hub{now: now, window: w, subs: map[string]map[string]*subscription{}}
}

// Subscribe registers s for battleID and returns the subscription id.
func (h *Hub) Subscribe(battleID string, s Subscriber, legacy bool) string {
	id := uuid.NewString()
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.subs[battleID]
	if !ok {
		m = map[string]*subscription{}
		h.subs[battleID] = m
	}
	m[id] = &subscription{id: id, sub: s, legacy: legacy}
	return id
}

func (h *Hub) Unsubscribe(battleID, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[battleID]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(h.subs, battleID)
		}
	}
}

// Drop closes and removes every subscriber of battleID and forgets its dedup
// history.
func (h *Hub) Drop(battleID string) {
	h.mu.Lock()
	m := h.subs[battleID]
	delete(h.subs, battleID)
	h.mu.Unlock()
	for _, s := range m {
		s.sub.Close()
	}
	h.window.Forget(battleID)
}

// Count returns the number of subscribers of battleID.
func (h *Hub) Count(battleID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[battleID])
}

func (h *Hub) snapshot(battleID string) []*subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := h.subs[battleID]
	out := make([]*subscription, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	return out
}

// Publish delivers payload under kind to every subscriber of battleID. It
// returns false when an identical emission was already delivered within the
// kind's window.
func (h *Hub) Publish(battleID string, kind Kind, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("broadcast encode failed", err, logging.Fields{constants.LogFieldBattleID: battleID, constants.LogFieldEvent: string(kind)})
		return false
	}
	if !h.window.Allow(battleID, string(kind), keys.Signature(data)) {
		logging.Debug("broadcast suppressed", logging.Fields{constants.LogFieldBattleID: battleID, constants.LogFieldEvent: string(kind)})
		return false
	}

	at := h.now()
	encoded := map[bool][]byte{}
	for _, s := range h.snapshot(battleID) {
		msg, ok := encoded[s.legacy]
		if !ok {
			msg, err = json.Marshal(Message{Event: Outbound(kind, s.legacy), BattleID: battleID, Data: json.RawMessage(data), At: at})
			if err != nil {
				logging.Error("broadcast envelope failed", err, logging.Fields{constants.LogFieldBattleID: battleID})
				return false
			}
			encoded[s.legacy] = msg
		}
		if err := s.sub.Send(msg); err != nil {
			logging.Warn("dropping subscriber after send failure", logging.Fields{constants.LogFieldBattleID: battleID, constants.LogFieldSubscriber: s.id, constants.LogFieldError: err.Error()})
			h.Unsubscribe(battleID, s.id)
			s.sub.Close()
		}
	}
	return true
}

// SendTo writes one message to a single subscription without dedup. It is used
// for replies such as the snapshot sent right after a join.
func (h *Hub) SendTo(battleID, id string, kind Kind, payload interface{}) error {
	h.mu.RLock()
	s, ok := h.subs[battleID][id]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	msg, err := json.Marshal(Message{Event: Outbound(kind, s.legacy), BattleID: battleID, Data: payload, At: h.now()})
	if err != nil {
		return err
	}
	return s.sub.Send(msg)
}
