package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
)

// ListBattles returns a summary of every live battle.
func (h *BattleHandler) ListBattles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"battles": h.svc.ListBattles()})
}

// GetBattle returns the battle snapshot. Concurrent readers share a single
// encoding of the same state.
func (h *BattleHandler) GetBattle(c *gin.Context) {
	body, err := h.svc.SnapshotJSON(c.Param(constants.ParamBattleID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, constants.ContentTypeJSON, body)
}

// Links returns the access link token of every role.
func (h *BattleHandler) Links(c *gin.Context) {
	links, err := h.svc.Links(c.Param(constants.ParamBattleID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.JSONKeyOK: true, "links": links})
}
