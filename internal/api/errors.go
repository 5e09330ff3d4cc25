package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
	"github.com/CriminalTalent/battle-system-sub001/internal/service"
	"github.com/CriminalTalent/battle-system-sub001/internal/storage"
)

// statusFor maps service errors to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBattleNotFound),
		errors.Is(err, service.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidMode),
		errors.Is(err, service.ErrInvalidTeam),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrUnknownItem),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidTarget),
		errors.Is(err, service.ErrInvalidChat),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidWinner),
		errors.Is(err, service.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNameTaken),
		errors.Is(err, service.ErrTeamFull),
		errors.Is(err, service.ErrNotInLobby),
		errors.Is(err, service.ErrNotActive),
		errors.Is(err, service.ErrNotPaused),
		errors.Is(err, service.ErrAlreadyEnded),
		errors.Is(err, service.ErrNotEnoughPlayers),
		errors.Is(err, service.ErrNotYourTurn),
		errors.Is(err, service.ErrAlreadyActed),
		errors.Is(err, service.ErrActorDown),
		errors.Is(err, service.ErrStaleTurn):
		return http.StatusConflict
	case errors.Is(err, service.ErrItemDeclined):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, storage.ErrCodeNotFound),
		errors.Is(err, storage.ErrCodeUsed),
		errors.Is(err, storage.ErrCodeExpired),
		errors.Is(err, storage.ErrCodeMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrCodesUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"ok": false, "error": reason}. Unexpected errors are
// logged and reported as an internal error.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.Error("request failed", err, logging.Fields{
			constants.LogFieldBattleID: c.Param(constants.ParamBattleID),
			"path":                     c.FullPath(),
		})
		msg = constants.ErrInternal
	}
	c.JSON(status, gin.H{constants.JSONKeyOK: false, constants.JSONKeyError: msg})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyOK: false, constants.JSONKeyError: constants.ErrInvalidRequest})
}
