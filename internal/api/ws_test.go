package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

func dialBattle(t *testing.T, srv *httptest.Server, battleID, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/battles/" + battleID + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", url, err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until one has the given event name and returns
// it together with every event name seen on the way.
func readUntil(t *testing.T, conn *websocket.Conn, event string) (map[string]interface{}, []string) {
	t.Helper()
	var seen []string
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q (seen %v): %v", event, seen, err)
		}
		name, _ := msg["event"].(string)
		seen = append(seen, name)
		if name == event {
			return msg, seen
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestWebSocketSubscribeAndCommand(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	id, links := s.createBattle(t, "1v1")

	conn := dialBattle(t, srv, id, "?token="+links["admin"])
	first, _ := readUntil(t, conn, "state_updated")
	if first["battle_id"] != id {
		t.Fatalf("initial snapshot should name the battle, got %v", first)
	}

	// Legacy command names resolve to the canonical command.
	if err := conn.WriteJSON(gin.H{"event": "battle:chat", "request_id": "r1", "data": gin.H{"text": "hello"}}); err != nil {
		t.Fatal(err)
	}
	ack, seen := readUntil(t, conn, replyAck)
	if ack["command"] != "chat_message" || ack["request_id"] != "r1" || ack["ok"] != true {
		t.Fatalf("unexpected ack %v", ack)
	}
	if !contains(seen, "chat_message") {
		t.Fatalf("chat should be broadcast before the ack, saw %v", seen)
	}

	if err := conn.WriteJSON(gin.H{"type": "teleport"}); err != nil {
		t.Fatal(err)
	}
	if e, _ := readUntil(t, conn, replyError); e["error"] == "" {
		t.Fatalf("unknown commands should be rejected, got %v", e)
	}
}

func TestWebSocketLegacyNamesAndLogin(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	id, _ := s.createBattle(t, "1v1")
	code, err := s.svc.IssueOneTimeCode(id, game.RoleSpectator, "")
	if err != nil {
		t.Fatal(err)
	}

	conn := dialBattle(t, srv, id, "?legacy=1")
	if err := conn.WriteJSON(gin.H{"type": "chat_message", "data": gin.H{"text": "hi"}}); err != nil {
		t.Fatal(err)
	}
	if e, _ := readUntil(t, conn, replyError); e["command"] != "chat_message" {
		t.Fatalf("anonymous clients must log in first, got %v", e)
	}

	if err := conn.WriteJSON(gin.H{"type": "auth:login", "data": gin.H{"role": "spectator", "code": code.Code}}); err != nil {
		t.Fatal(err)
	}
	ack, seen := readUntil(t, conn, replyAck)
	data := ack["data"].(map[string]interface{})
	if data["role"] != "spectator" || data["token"] == "" {
		t.Fatalf("unexpected login ack %v", ack)
	}
	if !contains(seen, "battleUpdate") {
		t.Fatalf("legacy subscribers get the snapshot under its alias, saw %v", seen)
	}

	if err := conn.WriteJSON(gin.H{"type": "admin_force_end"}); err != nil {
		t.Fatal(err)
	}
	if e, _ := readUntil(t, conn, replyError); e["error"] == "" {
		t.Fatalf("spectators cannot force an end, got %v", e)
	}
}

func TestWebSocketRejectsUnknownBattle(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/battles/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
}

func TestWebSocketClosedWhenBattleDeleted(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	id, links := s.createBattle(t, "1v1")

	conn := dialBattle(t, srv, id, "?token="+links["spectator"])
	readUntil(t, conn, "state_updated")
	if code, body := s.do(t, http.MethodDelete, "/api/battles/"+id, links["admin"], nil); code != http.StatusOK {
		t.Fatalf("delete: %d %v", code, body)
	}
	ended, _ := readUntil(t, conn, "battle_ended")
	if ended["battle_id"] != id {
		t.Fatalf("unexpected end event %v", ended)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("dropped clients should be closed by the server, got %v", err)
	}
	if n := s.hub.Count(id); n != 0 {
		t.Fatalf("expected no subscribers left, got %d", n)
	}
}
