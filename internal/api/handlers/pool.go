package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/feeds"
	"github.com/stitts-dev/dfs-lineup-client/internal/sites"
	"github.com/stitts-dev/dfs-lineup-client/pkg/utils"
)

type PoolHandler struct {
	feeds *feeds.Service
}

func NewPoolHandler(feedService *feeds.Service) *PoolHandler {
	return &PoolHandler{feeds: feedService}
}

// parseScope validates the :sport/:site path parameters
func parseScope(c *gin.Context) (dfs.Sport, dfs.Site, sites.Config, bool) {
	sport := dfs.Sport(c.Param("sport"))
	site := dfs.Site(c.Param("site"))

	cfg, err := sites.GetConfig(sport, site)
	if err != nil {
		utils.SendValidationError(c, "Unknown sport/site combination", err.Error())
		return "", "", sites.Config{}, false
	}
	return sport, site, cfg, true
}

// GetPool returns the normalized player pool for a scope. `?refresh=true`
// bypasses the cache; `?slate=` selects a non-main slate.
func (h *PoolHandler) GetPool(c *gin.Context) {
	sport, site, cfg, ok := parseScope(c)
	if !ok {
		return
	}
	slate := c.Query("slate")

	var err error
	var pool []dfs.Player
	if c.Query("refresh") == "true" {
		pool, err = h.feeds.Refresh(c.Request.Context(), sport, site, slate)
	} else {
		pool, err = h.feeds.GetPool(c.Request.Context(), sport, site, slate)
	}
	if err != nil {
		utils.SendInternalError(c, "Failed to load player pool: "+err.Error())
		return
	}

	utils.SendSuccess(c, gin.H{
		"sport":   sport,
		"site":    site,
		"slate":   slate,
		"slots":   cfg.Slots,
		"max_cap": cfg.MaxCap,
		"players": pool,
	})
}

// GetSports lists the supported optimizer page variants
func (h *PoolHandler) GetSports(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"sports": sites.Sports(),
		"sites":  []dfs.Site{dfs.SiteDraftKings, dfs.SiteFanDuel},
	})
}
