package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/service"
)

type CreateBattlePayload struct {
	Mode string `json:"mode"`
	service.SettingsOverride
}

// CreateBattle opens a lobby and returns its snapshot with the role links.
func (h *BattleHandler) CreateBattle(c *gin.Context) {
	var req CreateBattlePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	snap, err := h.svc.CreateBattle(req.Mode, &req.SettingsOverride)
	if err != nil {
		respondError(c, err)
		return
	}
	links, err := h.svc.Links(snap.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		constants.JSONKeyOK: true,
		"battle":            snap,
		"links":             links,
	})
}

// DeleteBattle removes a battle and disconnects its subscribers.
func (h *BattleHandler) DeleteBattle(c *gin.Context) {
	if err := h.svc.DeleteBattle(c.Param(constants.ParamBattleID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyOK: true})
}

type CharacterPayload struct {
	Team  string         `json:"team"`
	Name  string         `json:"name"`
	Stats game.Stats     `json:"stats"`
	HP    int            `json:"hp"`
	Items map[string]int `json:"items"`
}

// AddCharacter lets an admin place a character on a team while in the lobby.
func (h *BattleHandler) AddCharacter(c *gin.Context) {
	var req CharacterPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	p, err := h.svc.AddCharacter(c.Param(constants.ParamBattleID), service.CharacterInput{
		Team:  req.Team,
		Name:  req.Name,
		Stats: req.Stats,
		HP:    req.HP,
		Items: req.Items,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{constants.JSONKeyOK: true, "player": p})
}

type JoinPayload struct {
	Team string `json:"team"`
	Name string `json:"name"`
}

// JoinBattle claims (or creates) the named character and returns a session
// token bound to it.
func (h *BattleHandler) JoinBattle(c *gin.Context) {
	var req JoinPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := h.svc.JoinBattle(c.Param(constants.ParamBattleID), req.Team, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.JSONKeyOK:    true,
		constants.JSONKeyToken: res.Token,
		"player":               res.Player,
	})
}

type LeavePayload struct {
	PlayerID string `json:"player_id"`
}

// LeaveBattle removes the caller's character from the lobby. Admins may name
// any player.
func (h *BattleHandler) LeaveBattle(c *gin.Context) {
	role, _, playerID := identity(c)
	if role == game.RoleAdmin {
		var req LeavePayload
		if err := c.ShouldBindJSON(&req); err != nil || req.PlayerID == "" {
			badRequest(c)
			return
		}
		playerID = req.PlayerID
	}
	if playerID == "" {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyOK: false, constants.JSONKeyError: constants.ErrForbidden})
		return
	}
	if err := h.svc.LeaveBattle(c.Param(constants.ParamBattleID), playerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyOK: true})
}

// StartBattle rolls initiative and starts the clocks.
func (h *BattleHandler) StartBattle(c *gin.Context) {
	h.control(c, h.svc.StartBattle)
}

func (h *BattleHandler) PauseBattle(c *gin.Context) {
	h.control(c, h.svc.PauseBattle)
}

func (h *BattleHandler) ResumeBattle(c *gin.Context) {
	h.control(c, h.svc.ResumeBattle)
}

func (h *BattleHandler) control(c *gin.Context, op func(string) error) {
	id := c.Param(constants.ParamBattleID)
	if err := op(id); err != nil {
		respondError(c, err)
		return
	}
	snap, err := h.svc.Snapshot(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyOK: true, "battle": snap})
}

type EndPayload struct {
	Winner string `json:"winner"`
}

// EndBattle force-ends a battle. An empty winner is computed from the
// current state.
func (h *BattleHandler) EndBattle(c *gin.Context) {
	var req EndPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
	}
	winner, err := h.svc.ForceEnd(c.Param(constants.ParamBattleID), req.Winner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyOK: true, constants.JSONKeyWinner: winner})
}
