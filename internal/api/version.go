package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CriminalTalent/battle-system-sub001/internal/version"
)

// Version returns build and VCS metadata injected at build time. It doubles
// as the health probe endpoint.
func Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
