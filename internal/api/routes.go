package api

import (
	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

// Routes registers the HTTP management surface and the event channel.
func (h *BattleHandler) Routes(router gin.IRouter) {
	router.GET(constants.RouteWSBattle, h.ServeWS)

	apiRoutes := router.Group(constants.RouteAPIPrefix)
	{
		// Public endpoints
		apiRoutes.GET(constants.RouteVersion, Version)
		apiRoutes.GET(constants.RouteBattles, h.ListBattles)
		apiRoutes.POST(constants.RouteBattles, h.AdminKeyRequired(), h.CreateBattle)
		apiRoutes.POST(constants.RouteLogin, h.Login)

		// Any role of the battle
		battle := apiRoutes.Group("")
		battle.Use(h.BattleAuth())
		battle.GET(constants.RouteBattleByID, h.GetBattle)
		battle.POST(constants.RouteChat, h.Chat)

		players := battle.Group("")
		players.Use(RequireRole(game.RolePlayer, game.RoleAdmin))
		players.POST(constants.RouteJoin, h.JoinBattle)
		players.POST(constants.RouteLeave, h.LeaveBattle)
		players.POST(constants.RouteAction, h.SubmitAction)

		admin := battle.Group("")
		admin.Use(RequireRole(game.RoleAdmin))
		admin.DELETE(constants.RouteBattleByID, h.DeleteBattle)
		admin.POST(constants.RouteCharacters, h.AddCharacter)
		admin.POST(constants.RouteStart, h.StartBattle)
		admin.POST(constants.RoutePause, h.PauseBattle)
		admin.POST(constants.RouteResume, h.ResumeBattle)
		admin.POST(constants.RouteEnd, h.EndBattle)
		admin.GET(constants.RouteLinks, h.Links)
		admin.POST(constants.RouteOTP, h.IssueOneTimeCode)
	}
}
