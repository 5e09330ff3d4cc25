package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/CriminalTalent/battle-system-sub001/internal/auth"
	"github.com/CriminalTalent/battle-system-sub001/internal/broadcast"
	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
	"github.com/CriminalTalent/battle-system-sub001/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBuffer     = 64
	maxInboundSize = 8 << 10

	replyAck   = "ack"
	replyError = "error"
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errClientClosed   = errors.New("client closed")
	errForbidden      = errors.New(constants.ErrForbidden)
	errLoginRequired  = errors.New(constants.ErrAuthRequired)
)

// inbound is a command sent by a client. Older clients name the command in
// "event" instead of "type".
type inbound struct {
	Type      string          `json:"type"`
	Event     string          `json:"event"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// reply answers one inbound command on the same connection.
type reply struct {
	Event     string      `json:"event"`
	Command   string      `json:"command"`
	RequestID string      `json:"request_id,omitempty"`
	OK        bool        `json:"ok"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// wsClient is one websocket connection. Writes go through a buffered queue
// drained by writePump; a client that cannot keep up is dropped by the hub.
type wsClient struct {
	conn   *websocket.Conn
	writeM sync.Mutex
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	quit     chan struct{}
	quitOnce sync.Once

	battleID string
	legacy   bool
	subID    string

	// Only the read loop touches the identity fields.
	role     game.Role
	name     string
	playerID string
}

func newWSClient(conn *websocket.Conn, battleID string, legacy bool) *wsClient {
	return &wsClient{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		battleID: battleID,
		legacy:   legacy,
	}
}

// Send queues data without blocking.
func (c *wsClient) Send(data []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close asks writePump to flush what is queued, send a close frame and
// disconnect. The hub calls it when it drops the client.
func (c *wsClient) Close() {
	c.quitOnce.Do(func() { close(c.quit) })
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsClient) writeMessage(messageType int, data []byte) error {
	c.writeM.Lock()
	defer c.writeM.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()
	for {
		select {
		case msg := <-c.send:
			if err := c.writeMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			c.drain()
			_ = c.writeMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) drain() {
	for {
		select {
		case msg := <-c.send:
			if err := c.writeMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsClient) reply(r reply) {
	data, err := json.Marshal(r)
	if err != nil {
		logging.Error("failed to encode reply", err, logging.Fields{constants.LogFieldBattleID: c.battleID})
		return
	}
	_ = c.Send(data)
}

// ServeWS upgrades the request to the battle's event channel. A valid token
// subscribes the connection immediately; without one the client must send a
// login command before it receives events.
func (h *BattleHandler) ServeWS(c *gin.Context) {
	battleID := c.Param(constants.ParamBattleID)
	var claims *auth.Claims
	if token := tokenFrom(c); token != "" {
		var err error
		claims, err = h.svc.Authenticate(battleID, token)
		if errors.Is(err, service.ErrBattleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrBattleNotFound})
			return
		}
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{constants.JSONKeyError: constants.ErrInvalidSession})
			return
		}
	} else if _, err := h.svc.Snapshot(battleID); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn("websocket upgrade failed", logging.Fields{constants.LogFieldBattleID: battleID, constants.LogFieldError: err.Error()})
		return
	}
	ws := newWSClient(conn, battleID, c.Query(constants.QueryLegacy) == "1")
	if claims != nil {
		ws.role, ws.name, ws.playerID = claims.Role, claims.Name, claims.PlayerID
	}

	go ws.writePump()
	if ws.role != "" {
		h.subscribe(ws)
	}
	logging.Info("websocket connected", logging.Fields{
		constants.LogFieldBattleID: battleID,
		constants.LogFieldRole:     string(ws.role),
	})
	h.readPump(ws)
	if ws.subID != "" {
		h.hub.Unsubscribe(battleID, ws.subID)
	}
	ws.close()
	logging.Info("websocket disconnected", logging.Fields{
		constants.LogFieldBattleID:   battleID,
		constants.LogFieldSubscriber: ws.subID,
	})
}

// subscribe attaches the client to the hub and sends it the current state.
func (h *BattleHandler) subscribe(ws *wsClient) {
	if ws.subID != "" {
		return
	}
	ws.subID = h.hub.Subscribe(ws.battleID, ws, ws.legacy)
	snap, err := h.svc.Snapshot(ws.battleID)
	if err != nil {
		return
	}
	if err := h.hub.SendTo(ws.battleID, ws.subID, broadcast.StateUpdated, snap); err != nil {
		logging.Warn("failed to send initial snapshot", logging.Fields{
			constants.LogFieldBattleID:   ws.battleID,
			constants.LogFieldSubscriber: ws.subID,
			constants.LogFieldError:      err.Error(),
		})
	}
}

func (h *BattleHandler) readPump(ws *wsClient) {
	ws.conn.SetReadLimit(maxInboundSize)
	_ = ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("websocket read failed", logging.Fields{constants.LogFieldBattleID: ws.battleID, constants.LogFieldError: err.Error()})
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			ws.reply(reply{Event: replyError, Error: constants.ErrInvalidRequest})
			continue
		}
		h.dispatch(ws, in)
	}
}

// dispatch resolves the command name through the alias table and runs it.
func (h *BattleHandler) dispatch(ws *wsClient, in inbound) {
	name := in.Type
	if name == "" {
		name = in.Event
	}
	r := reply{Command: name, RequestID: in.RequestID}
	cmd, ok := broadcast.CanonicalCommand(name)
	if !ok {
		r.Event, r.Error = replyError, constants.ErrUnknownCommand
		ws.reply(r)
		return
	}
	r.Command = string(cmd)
	data, err := h.run(ws, cmd, in.Data)
	if err != nil {
		r.Event, r.Error = replyError, wsErrorText(err)
		ws.reply(r)
		return
	}
	r.Event, r.OK, r.Data = replyAck, true, data
	ws.reply(r)
}

func (h *BattleHandler) run(ws *wsClient, cmd broadcast.Command, raw json.RawMessage) (interface{}, error) {
	if cmd != broadcast.CmdLogin && ws.role == "" {
		return nil, errLoginRequired
	}
	switch cmd {
	case broadcast.CmdLogin:
		var req LoginPayload
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		res, err := h.svc.Login(ws.battleID, game.Role(req.Role), req.Name, req.Code)
		if err != nil {
			return nil, err
		}
		ws.role, ws.name, ws.playerID = res.Role, res.Name, res.PlayerID
		h.subscribe(ws)
		return res, nil

	case broadcast.CmdJoinBattle:
		if ws.role != game.RolePlayer && ws.role != game.RoleAdmin {
			return nil, errForbidden
		}
		var req JoinPayload
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		res, err := h.svc.JoinBattle(ws.battleID, req.Team, req.Name)
		if err != nil {
			return nil, err
		}
		if ws.role == game.RolePlayer {
			ws.name, ws.playerID = res.Player.Name, res.Player.ID
		}
		return res, nil

	case broadcast.CmdPlayerAction:
		var req ActionRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		playerID := ws.playerID
		if ws.role == game.RoleAdmin && req.PlayerID != "" {
			playerID = req.PlayerID
		}
		if playerID == "" || ws.role == game.RoleSpectator {
			return nil, errForbidden
		}
		return h.svc.PlayerAction(ws.battleID, playerID, service.Action{
			Type:     req.Type,
			TargetID: req.TargetID,
			Item:     req.Item,
			Turn:     req.Turn,
		})

	case broadcast.CmdChat:
		var req ChatPayload
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return h.svc.Chat(ws.battleID, ws.name, req.Text, ws.role)
	}

	// The remaining commands are admin only.
	if ws.role != game.RoleAdmin {
		return nil, errForbidden
	}
	switch cmd {
	case broadcast.CmdCreateBattle:
		var req CreateBattlePayload
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		snap, err := h.svc.CreateBattle(req.Mode, &req.SettingsOverride)
		if err != nil {
			return nil, err
		}
		links, err := h.svc.Links(snap.ID)
		if err != nil {
			return nil, err
		}
		return gin.H{"battle": snap, "links": links}, nil

	case broadcast.CmdIssueCode:
		var req OTPPayload
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		return h.svc.IssueOneTimeCode(ws.battleID, game.Role(req.Role), req.Name)

	case broadcast.CmdForceEnd:
		var req EndPayload
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		winner, err := h.svc.ForceEnd(ws.battleID, req.Winner)
		if err != nil {
			return nil, err
		}
		return gin.H{constants.JSONKeyWinner: winner}, nil
	}
	return nil, errors.New(constants.ErrUnknownCommand)
}

var errBadPayload = errors.New(constants.ErrInvalidRequest)

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

// wsErrorText hides unexpected failures the same way the HTTP surface does.
func wsErrorText(err error) string {
	switch {
	case errors.Is(err, errForbidden), errors.Is(err, errLoginRequired), errors.Is(err, errBadPayload):
		return err.Error()
	case statusFor(err) == http.StatusInternalServerError:
		logging.Error("websocket command failed", err, nil)
		return constants.ErrInternal
	}
	return err.Error()
}
