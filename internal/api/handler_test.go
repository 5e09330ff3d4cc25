package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/auth"
	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/config"
	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/dice"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/service"
	"github.com/CriminalTalent/battle-system-sub001/internal/storage"
	"github.com/CriminalTalent/battle-system-sub001/internal/timers"
)

const testAdminKey = "let-me-in"

type testServer struct {
	router *gin.Engine
	svc    *service.BattleService
	hub    *broadcast.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := timers.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	db, err := storage.OpenAndMigrate("file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	signer, err := auth.NewSigner("api-test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	signer.WithClock(clock.Now)
	hub := broadcast.NewHub(clock.Now, broadcast.DefaultWindows(time.Second, 100*time.Millisecond))
	d := config.Defaults().Battle
	d.TurnTimeLimit = 0
	d.BattleDuration = 0
	svc, err := service.New(service.Options{
		Codes:        storage.NewSQLiteRepository(db),
		Publisher:    hub,
		Roller:       dice.NewSequence(10),
		Signer:       signer,
		Clock:        clock,
		Defaults:     d,
		TickInterval: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	h := NewBattleHandler(svc, hub, Options{AdminKey: testAdminKey})
	r := gin.New()
	h.Routes(r)
	return &testServer{router: r, svc: svc, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	if token != "" {
		req.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
	}
	if method == http.MethodPost && path == "/api/battles" {
		req.Header.Set(constants.HeaderAdminKey, testAdminKey)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: bad json %q", method, path, w.Body.String())
		}
	}
	return w.Code, out
}

// createBattle returns the battle id and the role link tokens.
func (s *testServer) createBattle(t *testing.T, mode string) (string, map[string]string) {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/battles", "", gin.H{"mode": mode})
	if code != http.StatusCreated {
		t.Fatalf("create: %d %v", code, body)
	}
	id := body["battle"].(map[string]interface{})["id"].(string)
	links := map[string]string{}
	for role, tok := range body["links"].(map[string]interface{}) {
		links[role] = tok.(string)
	}
	return id, links
}

func TestVersion(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodGet, constants.RouteVersionHealth, "", nil)
	if code != http.StatusOK || body["service"] != "battle-server" {
		t.Fatalf("unexpected version response %d %v", code, body)
	}
}

func TestCreateBattleRequiresAdminKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/battles", bytes.NewBufferString(`{"mode":"1v1"}`))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin key, got %d", w.Code)
	}

	code, body := s.do(t, http.MethodPost, "/api/battles", "", gin.H{"mode": "5v5"})
	if code != http.StatusBadRequest || body[constants.JSONKeyOK] != false {
		t.Fatalf("expected 400 for bad mode, got %d %v", code, body)
	}

	_, links := s.createBattle(t, "2v2")
	for _, role := range []game.Role{game.RoleAdmin, game.RolePlayer, game.RoleSpectator} {
		if links[string(role)] == "" {
			t.Fatalf("missing %s link", role)
		}
	}
}

func TestBattleAuthAndRoles(t *testing.T) {
	s := newTestServer(t)
	id, links := s.createBattle(t, "1v1")
	path := "/api/battles/" + id

	if code, _ := s.do(t, http.MethodGet, path, "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, path, "garbage", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, "/api/battles/missing", links["admin"], nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown battle, got %d", code)
	}
	code, body := s.do(t, http.MethodGet, path+"?token="+links["spectator"], "", nil)
	if code != http.StatusOK || body["id"] != id {
		t.Fatalf("spectator should read the snapshot: %d %v", code, body)
	}
	if code, _ := s.do(t, http.MethodPost, path+"/start", links["spectator"], nil); code != http.StatusForbidden {
		t.Fatalf("spectators cannot start battles, got %d", code)
	}
	if code, _ := s.do(t, http.MethodGet, path+"/links", links["player"], nil); code != http.StatusForbidden {
		t.Fatalf("players cannot read links, got %d", code)
	}
}

func TestBattleFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id, links := s.createBattle(t, "1v1")
	path := "/api/battles/" + id
	admin := links["admin"]

	code, body := s.do(t, http.MethodPost, path+"/join", links["player"], gin.H{"team": "A", "name": "Ayla"})
	if code != http.StatusOK {
		t.Fatalf("join: %d %v", code, body)
	}
	ayla := body[constants.JSONKeyToken].(string)
	aylaID := body["player"].(map[string]interface{})["id"].(string)

	code, body = s.do(t, http.MethodPost, path+"/characters", admin, gin.H{
		"team":  "B",
		"name":  "Bruno",
		"stats": gin.H{"attack": 3, "defense": 3, "agility": 1, "luck": 3},
	})
	if code != http.StatusCreated {
		t.Fatalf("add character: %d %v", code, body)
	}
	brunoID := body["player"].(map[string]interface{})["id"].(string)

	if code, body = s.do(t, http.MethodPost, path+"/characters", admin, gin.H{"team": "B", "name": "ayla"}); code != http.StatusConflict {
		t.Fatalf("duplicate names should conflict, got %d %v", code, body)
	}

	if code, body = s.do(t, http.MethodPost, path+"/start", admin, nil); code != http.StatusOK {
		t.Fatalf("start: %d %v", code, body)
	}
	if actor := body["battle"].(map[string]interface{})["current_actor"]; actor != aylaID {
		t.Fatalf("the faster team should act first, got %v", actor)
	}

	if code, body = s.do(t, http.MethodPost, path+"/action", links["spectator"], gin.H{"type": "pass"}); code != http.StatusForbidden {
		t.Fatalf("spectators cannot act, got %d", code)
	}
	if code, body = s.do(t, http.MethodPost, path+"/action", ayla, gin.H{"type": "dance"}); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d %v", code, body)
	}
	code, body = s.do(t, http.MethodPost, path+"/action", ayla, gin.H{"type": "attack", "target_id": brunoID, "turn": 1})
	if code != http.StatusOK || body[constants.JSONKeyOK] != true {
		t.Fatalf("attack: %d %v", code, body)
	}
	if code, body = s.do(t, http.MethodPost, path+"/action", ayla, gin.H{"type": "pass"}); code != http.StatusConflict {
		t.Fatalf("acting out of turn should conflict, got %d %v", code, body)
	}
	// Admins may act on behalf of a player.
	if code, body = s.do(t, http.MethodPost, path+"/action", admin, gin.H{"type": "pass", "player_id": brunoID}); code != http.StatusOK {
		t.Fatalf("admin pass: %d %v", code, body)
	}

	if code, body = s.do(t, http.MethodPost, path+"/chat", ayla, gin.H{"text": "gg"}); code != http.StatusOK {
		t.Fatalf("chat: %d %v", code, body)
	}
	if msg := body["message"].(map[string]interface{}); msg["sender"] != "Ayla" {
		t.Fatalf("chat should carry the session name, got %v", msg)
	}

	if code, body = s.do(t, http.MethodPost, path+"/pause", admin, nil); code != http.StatusOK {
		t.Fatalf("pause: %d %v", code, body)
	}
	if code, body = s.do(t, http.MethodPost, path+"/pause", admin, nil); code != http.StatusConflict {
		t.Fatalf("double pause should conflict, got %d", code)
	}
	if code, body = s.do(t, http.MethodPost, path+"/resume", admin, nil); code != http.StatusOK {
		t.Fatalf("resume: %d %v", code, body)
	}

	code, body = s.do(t, http.MethodPost, path+"/end", admin, gin.H{"winner": "B"})
	if code != http.StatusOK || body[constants.JSONKeyWinner] != "B" {
		t.Fatalf("end: %d %v", code, body)
	}
	if code, _ = s.do(t, http.MethodDelete, path, admin, nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	if code, _ = s.do(t, http.MethodGet, path, admin, nil); code != http.StatusNotFound {
		t.Fatalf("deleted battles are gone, got %d", code)
	}
}

func TestOneTimeCodeLoginOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id, links := s.createBattle(t, "1v1")
	path := "/api/battles/" + id

	code, body := s.do(t, http.MethodPost, path+"/otp", links["admin"], gin.H{"role": "spectator"})
	if code != http.StatusCreated {
		t.Fatalf("otp: %d %v", code, body)
	}
	otp := body[constants.JSONKeyCode].(string)

	code, body = s.do(t, http.MethodPost, path+"/login", "", gin.H{"role": "spectator", "code": otp})
	if code != http.StatusOK || body[constants.JSONKeyToken] == "" {
		t.Fatalf("login: %d %v", code, body)
	}
	session := body[constants.JSONKeyToken].(string)
	if code, _ = s.do(t, http.MethodGet, path, session, nil); code != http.StatusOK {
		t.Fatalf("session token should authenticate, got %d", code)
	}
	if code, _ = s.do(t, http.MethodPost, path+"/login", "", gin.H{"role": "spectator", "code": otp}); code != http.StatusUnauthorized {
		t.Fatalf("codes are single use, got %d", code)
	}
}
