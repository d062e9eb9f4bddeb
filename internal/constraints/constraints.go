// Package constraints holds the user-editable optimization settings for one
// page session and turns them into solver requests. It is pure in-memory
// state; no network calls happen here.
package constraints

import (
	"errors"
	"fmt"
	"sort"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/sites"
)

// ErrInvalidConstraint marks request-shape errors caught before any I/O
var ErrInvalidConstraint = errors.New("invalid constraint")

const (
	// BoostLimit bounds the cumulative per-player boost
	BoostLimit = 6
	// BoostStep is the projection adjustment per boost unit
	BoostStep = 0.03
)

// ExposureBounds is a per-player min/max exposure pair in [0,100]
type ExposureBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Model owns all user-editable settings for one slate. Mutate it only
// through its methods; Reset when the site or slate selection changes.
type Model struct {
	cfg sites.Config

	Cap          int
	Objective    dfs.Objective
	LineupCount  int
	Randomness   float64
	GlobalMaxPct float64
	MinDiff      int
	TimeLimitMs  int

	locks     map[string]bool
	excludes  map[string]bool
	exposures map[string]ExposureBounds
	boosts    map[string]int
	teams     map[string]bool // pool restriction; empty means all teams

	StackRules *dfs.StackRules
	GroupRules []dfs.GroupRule
}

// NewModel creates a model with site defaults applied
func NewModel(cfg sites.Config) *Model {
	m := &Model{cfg: cfg}
	m.Reset()
	return m
}

// Reset restores site defaults and clears all player-level settings
func (m *Model) Reset() {
	m.Cap = m.cfg.MaxCap
	m.Objective = dfs.ObjectiveProjection
	m.LineupCount = 20
	m.Randomness = 0
	m.GlobalMaxPct = 100
	m.MinDiff = 1
	m.TimeLimitMs = 0
	m.locks = make(map[string]bool)
	m.excludes = make(map[string]bool)
	m.exposures = make(map[string]ExposureBounds)
	m.boosts = make(map[string]int)
	m.teams = make(map[string]bool)
	m.StackRules = nil
	m.GroupRules = nil
}

// SetLock locks a player into every lineup, clearing any exclude
func (m *Model) SetLock(name string) {
	delete(m.excludes, name)
	m.locks[name] = true
}

// SetExclude removes a player from the pool, clearing any lock
func (m *Model) SetExclude(name string) {
	delete(m.locks, name)
	m.excludes[name] = true
}

// ClearLock removes a lock if present
func (m *Model) ClearLock(name string) {
	delete(m.locks, name)
}

// ClearExclude removes an exclude if present
func (m *Model) ClearExclude(name string) {
	delete(m.excludes, name)
}

// IsLocked reports whether a player is locked
func (m *Model) IsLocked(name string) bool { return m.locks[name] }

// IsExcluded reports whether a player is excluded
func (m *Model) IsExcluded(name string) bool { return m.excludes[name] }

// SetExposure clamps both bounds into [0,100]. When min exceeds max after
// clamping, max is raised to min: min wins, by documented policy.
func (m *Model) SetExposure(name string, min, max float64) ExposureBounds {
	b := ExposureBounds{Min: clampPct(min), Max: clampPct(max)}
	if b.Min > b.Max {
		b.Max = b.Min
	}
	m.exposures[name] = b
	return b
}

// ClearExposure removes per-player exposure bounds
func (m *Model) ClearExposure(name string) {
	delete(m.exposures, name)
}

// Exposure returns the stored bounds and whether any are set
func (m *Model) Exposure(name string) (ExposureBounds, bool) {
	b, ok := m.exposures[name]
	return b, ok
}

// SetBoost adds delta to the player's cumulative boost, clamped to
// [-BoostLimit, BoostLimit], and returns the stored value.
func (m *Model) SetBoost(name string, delta int) int {
	b := m.boosts[name] + delta
	if b > BoostLimit {
		b = BoostLimit
	}
	if b < -BoostLimit {
		b = -BoostLimit
	}
	if b == 0 {
		delete(m.boosts, name)
	} else {
		m.boosts[name] = b
	}
	return b
}

// Boost returns the player's cumulative boost
func (m *Model) Boost(name string) int { return m.boosts[name] }

// BoostedProjection applies the boost adjustment to a raw projection
func (m *Model) BoostedProjection(name string, raw float64) float64 {
	return raw * (1 + BoostStep*float64(m.boosts[name]))
}

// SetTeamFilter restricts the pool to the given teams; empty enables all
func (m *Model) SetTeamFilter(teams []string) {
	m.teams = make(map[string]bool, len(teams))
	for _, t := range teams {
		m.teams[t] = true
	}
}

// AddGroupRule appends a group cardinality rule
func (m *Model) AddGroupRule(rule dfs.GroupRule) {
	m.GroupRules = append(m.GroupRules, rule)
}

// BuildRequest serializes the constraint set and eligible pool into the
// solver wire schema. It fails fast, before any network call, on request
// shapes the solver would reject.
func (m *Model) BuildRequest(pool []dfs.Player) (*dfs.SolveRequest, error) {
	if m.Cap <= 0 {
		return nil, fmt.Errorf("%w: cap must be positive, got %d", ErrInvalidConstraint, m.Cap)
	}
	if m.Cap > m.cfg.MaxCap {
		return nil, fmt.Errorf("%w: cap %d exceeds site maximum %d", ErrInvalidConstraint, m.Cap, m.cfg.MaxCap)
	}
	if m.LineupCount < 1 {
		return nil, fmt.Errorf("%w: lineup count must be at least 1, got %d", ErrInvalidConstraint, m.LineupCount)
	}
	if !dfs.ValidObjective(m.Objective) {
		return nil, fmt.Errorf("%w: unknown objective %q", ErrInvalidConstraint, m.Objective)
	}

	eligible := m.eligiblePool(pool)

	inPool := make(map[string]bool, len(eligible))
	for _, p := range eligible {
		inPool[p.Name] = true
	}
	for _, lock := range sortedKeys(m.locks) {
		if !inPool[lock] {
			return nil, fmt.Errorf("%w: locked player %q is not in the current pool", ErrInvalidConstraint, lock)
		}
	}

	req := &dfs.SolveRequest{
		Site:         m.cfg.Site,
		Cap:          m.Cap,
		Objective:    m.Objective,
		N:            m.LineupCount,
		Slots:        append([]string(nil), m.cfg.Slots...),
		Players:      eligible,
		Locks:        sortedKeys(m.locks),
		Excludes:     sortedKeys(m.excludes),
		Boosts:       copyIntMap(m.boosts),
		Randomness:   m.Randomness,
		GlobalMaxPct: m.GlobalMaxPct,
		MinPct:       make(map[string]float64),
		MaxPct:       make(map[string]float64),
		MinDiff:      m.MinDiff,
		TimeLimitMs:  m.TimeLimitMs,
		Groups:       append([]dfs.GroupRule(nil), m.GroupRules...),
	}

	for name, b := range m.exposures {
		if b.Min > 0 {
			req.MinPct[name] = b.Min
		}
		if b.Max < 100 {
			req.MaxPct[name] = b.Max
		}
	}

	if m.cfg.AllowsStacks && m.StackRules != nil {
		rules := *m.StackRules
		req.Stacks = &rules
	}

	return req, nil
}

// eligiblePool applies exclusions and the team restriction, preserving order
func (m *Model) eligiblePool(pool []dfs.Player) []dfs.Player {
	out := make([]dfs.Player, 0, len(pool))
	for _, p := range pool {
		if m.excludes[p.Name] {
			continue
		}
		if len(m.teams) > 0 && !m.teams[p.Team] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyIntMap(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
