package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/dfs-lineup-client/internal/builds"
	"github.com/stitts-dev/dfs-lineup-client/pkg/utils"
)

type BuildHandler struct {
	store *builds.Store
}

func NewBuildHandler(store *builds.Store) *BuildHandler {
	return &BuildHandler{store: store}
}

// ListBuilds returns the scope's saved builds, newest first
func (h *BuildHandler) ListBuilds(c *gin.Context) {
	sport, site, _, ok := parseScope(c)
	if !ok {
		return
	}

	list := h.store.List(sport, site)
	utils.SendSuccess(c, gin.H{
		"builds":  list,
		"durable": h.store.Durable(),
	})
}

// SaveBuild stores a snapshot under an optional name. An empty name gets
// the next "Build N" in scope.
func (h *BuildHandler) SaveBuild(c *gin.Context) {
	sport, site, _, ok := parseScope(c)
	if !ok {
		return
	}

	var req struct {
		Name     string          `json:"name"`
		Settings json.RawMessage `json:"settings" binding:"required"`
		Lineups  json.RawMessage `json:"lineups" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	build, err := h.store.Save(sport, site, req.Name, req.Settings, req.Lineups)
	if err != nil {
		utils.SendInternalError(c, "Failed to save build: "+err.Error())
		return
	}
	utils.SendSuccess(c, build)
}

// GetBuild loads one build by ID
func (h *BuildHandler) GetBuild(c *gin.Context) {
	build, err := h.store.Load(c.Param("id"))
	if errors.Is(err, builds.ErrNotFound) {
		utils.SendNotFound(c, "Build not found")
		return
	}
	if err != nil {
		utils.SendInternalError(c, "Failed to load build: "+err.Error())
		return
	}
	utils.SendSuccess(c, build)
}

// RenameBuild changes a build's display name
func (h *BuildHandler) RenameBuild(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	err := h.store.Rename(c.Param("id"), req.Name)
	if errors.Is(err, builds.ErrNotFound) {
		utils.SendNotFound(c, "Build not found")
		return
	}
	if err != nil {
		utils.SendInternalError(c, "Failed to rename build: "+err.Error())
		return
	}
	utils.SendSuccess(c, gin.H{"renamed": true})
}

// DeleteBuild removes a build. Its default-name index is never reissued.
func (h *BuildHandler) DeleteBuild(c *gin.Context) {
	err := h.store.Delete(c.Param("id"))
	if errors.Is(err, builds.ErrNotFound) {
		utils.SendNotFound(c, "Build not found")
		return
	}
	if err != nil {
		utils.SendInternalError(c, "Failed to delete build: "+err.Error())
		return
	}
	utils.SendSuccess(c, gin.H{"deleted": true})
}
