package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/service"
)

// tokenFrom reads a bearer token from the Authorization header or the
// token query parameter.
func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader(constants.HeaderAuthorization); strings.HasPrefix(h, constants.BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, constants.BearerPrefix))
	}
	return strings.TrimSpace(c.Query(constants.QueryToken))
}

// BattleAuth validates the caller's token for the battle in the path and
// injects its role and identity into the context.
func (h *BattleHandler) BattleAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{constants.JSONKeyError: constants.ErrAuthRequired})
			return
		}
		claims, err := h.svc.Authenticate(c.Param(constants.ParamBattleID), token)
		if errors.Is(err, service.ErrBattleNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{constants.JSONKeyError: constants.ErrBattleNotFound})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{constants.JSONKeyError: constants.ErrInvalidSession})
			return
		}
		c.Set(constants.CtxBattleID, claims.BattleID)
		c.Set(constants.CtxRole, claims.Role)
		c.Set(constants.CtxName, claims.Name)
		c.Set(constants.CtxPlayerID, claims.PlayerID)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. It must run after BattleAuth.
func RequireRole(roles ...game.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _, _ := identity(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{constants.JSONKeyError: constants.ErrForbidden})
	}
}

// AdminKeyRequired guards battle creation when an admin key is configured.
func (h *BattleHandler) AdminKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminKey == "" {
			c.Next()
			return
		}
		got := c.GetHeader(constants.HeaderAdminKey)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{constants.JSONKeyError: constants.ErrAuthRequired})
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) (role game.Role, name, playerID string) {
	if v, ok := c.Get(constants.CtxRole); ok {
		role, _ = v.(game.Role)
	}
	name = c.GetString(constants.CtxName)
	playerID = c.GetString(constants.CtxPlayerID)
	return role, name, playerID
}
