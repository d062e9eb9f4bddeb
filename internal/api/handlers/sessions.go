package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/dfs-lineup-client/internal/constraints"
	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/export"
	"github.com/stitts-dev/dfs-lineup-client/internal/feeds"
	"github.com/stitts-dev/dfs-lineup-client/internal/session"
	"github.com/stitts-dev/dfs-lineup-client/pkg/config"
	"github.com/stitts-dev/dfs-lineup-client/pkg/utils"
)

type SessionHandler struct {
	manager *session.Manager
	feeds   *feeds.Service
	config  *config.Config
}

func NewSessionHandler(manager *session.Manager, feedService *feeds.Service, cfg *config.Config) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		feeds:   feedService,
		config:  cfg,
	}
}

// CreateSession opens a page session over a freshly loaded pool
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		Sport dfs.Sport `json:"sport" binding:"required"`
		Site  dfs.Site  `json:"site" binding:"required"`
		Slate string    `json:"slate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	pool, err := h.feeds.GetPool(c.Request.Context(), req.Sport, req.Site, req.Slate)
	if err != nil {
		utils.SendInternalError(c, "Failed to load player pool: "+err.Error())
		return
	}

	s, err := h.manager.Create(req.Sport, req.Site, req.Slate, pool)
	if err != nil {
		utils.SendValidationError(c, "Failed to create session", err.Error())
		return
	}

	utils.SendSuccess(c, gin.H{
		"session": s,
		"players": len(pool),
	})
}

func (h *SessionHandler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		utils.SendNotFound(c, err.Error())
		return nil, false
	}
	return s, true
}

// GetSession returns session metadata and current settings
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	utils.SendSuccess(c, gin.H{
		"session":      s,
		"running":      s.Running(),
		"cap":          s.Model.Cap,
		"objective":    s.Model.Objective,
		"lineup_count": s.Model.LineupCount,
		"pool_size":    len(s.Pool()),
	})
}

// CloseSession cancels any running solve and drops the session
func (h *SessionHandler) CloseSession(c *gin.Context) {
	if _, ok := h.session(c); !ok {
		return
	}
	h.manager.Close(c.Param("id"))
	utils.SendSuccess(c, gin.H{"closed": true})
}

// constraintUpdate is the PUT body for constraint edits. Every field is
// optional; omitted fields are untouched.
type constraintUpdate struct {
	Reset bool `json:"reset"`

	Cap          *int           `json:"cap"`
	Objective    *dfs.Objective `json:"objective"`
	LineupCount  *int           `json:"lineup_count"`
	Randomness   *float64       `json:"randomness"`
	GlobalMaxPct *float64       `json:"global_max_pct"`
	MinDiff      *int           `json:"min_diff"`
	TimeLimitMs  *int           `json:"time_limit_ms"`

	Lock      []string `json:"lock"`
	Unlock    []string `json:"unlock"`
	Exclude   []string `json:"exclude"`
	Unexclude []string `json:"unexclude"`

	Exposures      map[string]constraints.ExposureBounds `json:"exposures"`
	ClearExposures []string                              `json:"clear_exposures"`
	Boosts         map[string]int                        `json:"boosts"` // deltas, applied cumulatively
	Teams          []string                              `json:"teams"`

	Stacks *dfs.StackRules `json:"stacks"`
	Groups []dfs.GroupRule `json:"groups"`
}

// UpdateConstraints applies constraint edits to a session
func (h *SessionHandler) UpdateConstraints(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req constraintUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	if req.LineupCount != nil && *req.LineupCount > h.config.MaxLineups {
		utils.SendValidationError(c, "Too many lineups requested",
			fmt.Sprintf("Maximum allowed: %d", h.config.MaxLineups))
		return
	}

	var boosts map[string]int
	s.Update(func(m *constraints.Model) {
		if req.Reset {
			m.Reset()
		}
		if req.Cap != nil {
			m.Cap = *req.Cap
		}
		if req.Objective != nil {
			m.Objective = *req.Objective
		}
		if req.LineupCount != nil {
			m.LineupCount = *req.LineupCount
		}
		if req.Randomness != nil {
			m.Randomness = *req.Randomness
		}
		if req.GlobalMaxPct != nil {
			m.GlobalMaxPct = *req.GlobalMaxPct
		}
		if req.MinDiff != nil {
			m.MinDiff = *req.MinDiff
		}
		if req.TimeLimitMs != nil {
			m.TimeLimitMs = *req.TimeLimitMs
		}

		for _, name := range req.Lock {
			m.SetLock(name)
		}
		for _, name := range req.Unlock {
			m.ClearLock(name)
		}
		for _, name := range req.Exclude {
			m.SetExclude(name)
		}
		for _, name := range req.Unexclude {
			m.ClearExclude(name)
		}

		for name, bounds := range req.Exposures {
			m.SetExposure(name, bounds.Min, bounds.Max)
		}
		for _, name := range req.ClearExposures {
			m.ClearExposure(name)
		}

		if len(req.Boosts) > 0 {
			boosts = make(map[string]int, len(req.Boosts))
			for name, delta := range req.Boosts {
				boosts[name] = m.SetBoost(name, delta)
			}
		}

		if req.Teams != nil {
			m.SetTeamFilter(req.Teams)
		}
		if req.Stacks != nil {
			m.StackRules = req.Stacks
		}
		for _, rule := range req.Groups {
			m.AddGroupRule(rule)
		}
	})

	resp := gin.H{"updated": true}
	if boosts != nil {
		// effective boost levels after clamping
		resp["boosts"] = boosts
	}
	utils.SendSuccess(c, resp)
}

// Optimize starts a solve for the session
func (h *SessionHandler) Optimize(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	// the solve outlives this request, so it is not tied to the request
	// context; cancellation goes through CancelOptimize
	err := s.Optimize(context.Background())
	if errors.Is(err, session.ErrSolveInFlight) {
		utils.SendConflict(c, err.Error())
		return
	}
	if errors.Is(err, constraints.ErrInvalidConstraint) {
		utils.SendValidationError(c, "Invalid constraints", err.Error())
		return
	}
	if err != nil {
		utils.SendInternalError(c, "Failed to start solve: "+err.Error())
		return
	}

	utils.SendSuccess(c, gin.H{"started": true})
}

// CancelOptimize stops the session's running solve
func (h *SessionHandler) CancelOptimize(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Cancel()
	utils.SendSuccess(c, gin.H{"cancelled": true})
}

// GetLineups returns the current result snapshot with exposure tables
func (h *SessionHandler) GetLineups(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	utils.SendSuccess(c, s.Snapshot())
}

// ExportLineups streams the current lineups as a CSV download
func (h *SessionHandler) ExportLineups(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	lineups := s.Accumulator().Lineups()
	if len(lineups) == 0 {
		utils.SendValidationError(c, "Nothing to export", "run an optimization first")
		return
	}

	data, err := export.Lineups(s.Config, lineups)
	if err != nil {
		utils.SendInternalError(c, "Failed to render CSV: "+err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.FileName(s.Config)))
	c.Data(http.StatusOK, "text/csv", data)
}
