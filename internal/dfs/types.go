package dfs

import (
	"encoding/json"
)

// Sport identifies an optimizer page variant
type Sport string

const (
	SportMLB         Sport = "mlb"
	SportNFL         Sport = "nfl"
	SportNFLShowdown Sport = "nfl_showdown"
	SportNASCAR      Sport = "nascar"
)

// Site identifies the DFS site a slate belongs to
type Site string

const (
	SiteDraftKings Site = "dk"
	SiteFanDuel    Site = "fd"
)

// Objective selects the metric the solver maximizes
type Objective string

const (
	ObjectiveProjection Objective = "projection"
	ObjectiveFloor      Objective = "floor"
	ObjectiveCeiling    Objective = "ceiling"
	ObjectiveOwnership  Objective = "ownership"
	ObjectiveOptimal    Objective = "optimalRate"
)

// ValidObjective reports whether o is a known objective
func ValidObjective(o Objective) bool {
	switch o {
	case ObjectiveProjection, ObjectiveFloor, ObjectiveCeiling, ObjectiveOwnership, ObjectiveOptimal:
		return true
	}
	return false
}

// Player is one canonical entry in a pool snapshot. Percent-like fields
// (Ownership, OptimalRate) are stored as 0-1 fractions regardless of how
// the source feed scaled them. A pool snapshot is immutable for the
// lifetime of one optimization request.
type Player struct {
	Name        string   `json:"name"`
	Team        string   `json:"team"`
	Opponent    string   `json:"opp"`
	Positions   []string `json:"eligible"`
	Salary      int      `json:"salary"`
	Projection  float64  `json:"proj"`
	Floor       float64  `json:"floor"`
	Ceiling     float64  `json:"ceil"`
	Ownership   float64  `json:"pown"`
	OptimalRate float64  `json:"opt"`
	Tag         string   `json:"tag,omitempty"` // e.g. CPT/FLEX multiplier role
}

// Metric returns the player's value for the given objective
func (p Player) Metric(o Objective) float64 {
	switch o {
	case ObjectiveFloor:
		return p.Floor
	case ObjectiveCeiling:
		return p.Ceiling
	case ObjectiveOwnership:
		return p.Ownership
	case ObjectiveOptimal:
		return p.OptimalRate
	default:
		return p.Projection
	}
}

// HasPosition reports whether pos is among the player's eligible positions
func (p Player) HasPosition(pos string) bool {
	for _, ep := range p.Positions {
		if ep == pos {
			return true
		}
	}
	return false
}

// Lineup is one solver result. Immutable once received; identified by its
// index within a result batch.
type Lineup struct {
	Players     []string `json:"players"`
	TotalSalary int      `json:"salary"`
	TotalMetric float64  `json:"total"`
	Config      string   `json:"config,omitempty"`
}

// wireLineup tolerates both player-list keys emitted by the solver
// ("players" for stick-and-ball sports, "drivers" for NASCAR).
type wireLineup struct {
	Players []string `json:"players"`
	Drivers []string `json:"drivers"`
	Salary  int      `json:"salary"`
	Total   float64  `json:"total"`
	Config  string   `json:"config"`
}

// UnmarshalJSON accepts either the "players" or "drivers" key
func (l *Lineup) UnmarshalJSON(data []byte) error {
	var w wireLineup
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	names := w.Players
	if len(names) == 0 {
		names = w.Drivers
	}
	l.Players = names
	l.TotalSalary = w.Salary
	l.TotalMetric = w.Total
	l.Config = w.Config
	return nil
}

// Contains reports whether the lineup includes the named player
func (l Lineup) Contains(name string) bool {
	for _, n := range l.Players {
		if n == name {
			return true
		}
	}
	return false
}

// DoneEvent is the terminal stream marker
type DoneEvent struct {
	Done     bool   `json:"done"`
	Reason   string `json:"reason,omitempty"`
	Produced int    `json:"produced,omitempty"`
}

// StackRules holds the sport-specific stacking portion of a request
type StackRules struct {
	PrimarySize     int  `json:"primary,omitempty"`
	SecondarySize   int  `json:"secondary,omitempty"`
	MinTeams        int  `json:"min_teams,omitempty"`
	AvoidOppPitcher bool `json:"avoid_opp_pitcher,omitempty"`
}

// GroupRuleMode constrains how many players of a group may be used together
type GroupRuleMode string

const (
	GroupAtLeast GroupRuleMode = "at-least"
	GroupAtMost  GroupRuleMode = "at-most"
	GroupExactly GroupRuleMode = "exactly"
)

// GroupRule is a cardinality constraint across a named set of players
type GroupRule struct {
	Mode    GroupRuleMode `json:"mode"`
	Count   int           `json:"count"`
	Players []string      `json:"players"`
}

// SolveRequest is the wire schema of a solver POST body
type SolveRequest struct {
	Site         Site               `json:"site"`
	Cap          int                `json:"cap"`
	Objective    Objective          `json:"objective"`
	N            int                `json:"n"`
	Slots        []string           `json:"slots"`
	Players      []Player           `json:"players"`
	Locks        []string           `json:"locks"`
	Excludes     []string           `json:"excludes"`
	Boosts       map[string]int     `json:"boosts"`
	Randomness   float64            `json:"randomness"`
	GlobalMaxPct float64            `json:"global_max_pct"`
	MinPct       map[string]float64 `json:"min_pct"`
	MaxPct       map[string]float64 `json:"max_pct"`
	MinDiff      int                `json:"min_diff"`
	TimeLimitMs  int                `json:"time_limit_ms"`
	Stacks       *StackRules        `json:"stacks,omitempty"`
	Groups       []GroupRule        `json:"groups,omitempty"`
}
