package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/service"
)

type ActionRequest struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
	Item     string `json:"item"`
	Turn     int    `json:"turn"`
	// PlayerID is honoured for admins only; players always act as themselves.
	PlayerID string `json:"player_id"`
}

// SubmitAction performs the caller's action for the current turn.
func (h *BattleHandler) SubmitAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	role, _, playerID := identity(c)
	if role == game.RoleAdmin && req.PlayerID != "" {
		playerID = req.PlayerID
	}
	if playerID == "" {
		c.JSON(http.StatusForbidden, gin.H{constants.JSONKeyOK: false, constants.JSONKeyError: constants.ErrForbidden})
		return
	}
	res, err := h.svc.PlayerAction(c.Param(constants.ParamBattleID), playerID, service.Action{
		Type:     req.Type,
		TargetID: req.TargetID,
		Item:     req.Item,
		Turn:     req.Turn,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type ChatPayload struct {
	Text string `json:"text"`
}

// Chat posts a message under the caller's name and role.
func (h *BattleHandler) Chat(c *gin.Context) {
	var req ChatPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	role, name, _ := identity(c)
	entry, err := h.svc.Chat(c.Param(constants.ParamBattleID), name, req.Text, role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyOK: true, "message": entry})
}
