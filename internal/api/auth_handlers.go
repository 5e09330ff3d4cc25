package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

type OTPPayload struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// IssueOneTimeCode creates a single-use login code for a role. Player codes
// name the character they log in as.
func (h *BattleHandler) IssueOneTimeCode(c *gin.Context) {
	var req OTPPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	code, err := h.svc.IssueOneTimeCode(c.Param(constants.ParamBattleID), game.Role(req.Role), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		constants.JSONKeyOK:   true,
		constants.JSONKeyCode: code.Code,
		constants.JSONKeyRole: code.Role,
		"name":                code.Name,
		"expires_at":          code.ExpiresAt,
	})
}

type LoginPayload struct {
	Role string `json:"role"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Login exchanges a one-time code for a session token.
func (h *BattleHandler) Login(c *gin.Context) {
	var req LoginPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := h.svc.Login(c.Param(constants.ParamBattleID), game.Role(req.Role), req.Name, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
