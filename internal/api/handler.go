package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/service"
)

// BattleHandler groups all battle-related HTTP and websocket handlers.
type BattleHandler struct {
	svc      *service.BattleService
	hub      *broadcast.Hub
	adminKey string
	upgrader websocket.Upgrader
}

// Options configures a BattleHandler.
type Options struct {
	// AdminKey, when set, must be sent in X-Admin-Key to create battles.
	AdminKey string
	// AllowedOrigins restricts websocket origins; empty allows any.
	AllowedOrigins []string
}

// NewBattleHandler creates a handler serving svc and streaming events from hub.
func NewBattleHandler(svc *service.BattleService, hub *broadcast.Hub, opts Options) *BattleHandler {
	h := &BattleHandler{svc: svc, hub: hub, adminKey: opts.AdminKey}
	allowed := map[string]bool{}
	for _, o := range opts.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[strings.TrimRight(o, "/")] = true
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[strings.TrimRight(origin, "/")]
		},
	}
	return h
}
