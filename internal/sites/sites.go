// Package sites holds the per-sport, per-site configuration that
// parameterizes the otherwise sport-agnostic optimization client: roster
// slots, salary caps, projection-feed column aliases, and which stack and
// group rules apply.
package sites

import (
	"fmt"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
)

// AliasTable maps a canonical player field to the ordered list of feed
// column names that may carry it. Resolution takes the first present,
// non-empty value. Headers come from the exporter workbooks, which have
// drifted across feed versions (spacing, underscores, casing).
type AliasTable map[string][]string

// Canonical field keys used by the normalizer
const (
	FieldName        = "name"
	FieldTeam        = "team"
	FieldOpponent    = "opp"
	FieldPositions   = "pos"
	FieldSalary      = "salary"
	FieldProjection  = "proj"
	FieldFloor       = "floor"
	FieldCeiling     = "ceil"
	FieldOwnership   = "pown"
	FieldOptimalRate = "opt"
	FieldTag         = "tag"
)

// Config describes one optimizer page variant
type Config struct {
	Sport         dfs.Sport
	Site          dfs.Site
	Slots         []string
	MaxCap        int
	RosterSize    int
	Aliases       AliasTable
	AllowsStacks  bool // hitter stacks (MLB)
	CaptainMode   bool // showdown CPT/FLEX multiplier roster
	PositionAlias map[string]string
	// DefaultPosition fills in for feeds that carry no position column
	// (NASCAR driver sheets). Empty means positions are required.
	DefaultPosition string
}

// SlotHeader returns the CSV export header for slot i
func (c Config) SlotHeader(i int) string {
	if i >= 0 && i < len(c.Slots) {
		return c.Slots[i]
	}
	return fmt.Sprintf("P%d", i+1)
}

func baseAliases(site dfs.Site) AliasTable {
	sal := []string{"DK Sal", "dk_sal", "DK_Sal", "DK Salary", "Salary", "Sal"}
	proj := []string{"DK Proj", "dk_proj", "DK_Proj", "DK Projection", "Proj", "Projection"}
	if site == dfs.SiteFanDuel {
		sal = []string{"FD Sal", "fd_sal", "FD_Sal", "FD Salary", "Salary", "Sal"}
		proj = []string{"FD Proj", "fd_proj", "FD_Proj", "FD Projection", "Proj", "Projection"}
	}
	return AliasTable{
		FieldName:        {"Player", "player", "Name", "name", "Driver", "driver"},
		FieldTeam:        {"Team", "team", "Tm"},
		FieldOpponent:    {"Opp", "opp", "Opponent", "opponent"},
		FieldPositions:   {"Pos", "pos", "Position", "position", "Positions"},
		FieldSalary:      sal,
		FieldProjection:  proj,
		FieldFloor:       {"Floor", "floor", "Flr"},
		FieldCeiling:     {"Ceil", "ceil", "Ceiling", "ceiling"},
		FieldOwnership:   {"pOWN%", "pOWN", "pown", "Own%", "Ownership", "ownership"},
		FieldOptimalRate: {"Opt%", "Opt", "opt", "Optimal", "optimal_rate"},
		FieldTag:         {"Tag", "tag", "Role", "role"},
	}
}

// standard position canonicalization shared by every sport
var commonPositionAlias = map[string]string{
	"SP":      "P",
	"RP":      "P",
	"DEF":     "DST",
	"D":       "DST",
	"DEFENSE": "DST",
}

// GetConfig returns the configuration for a sport/site pair
func GetConfig(sport dfs.Sport, site dfs.Site) (Config, error) {
	cfg := Config{
		Sport:         sport,
		Site:          site,
		Aliases:       baseAliases(site),
		PositionAlias: commonPositionAlias,
	}

	switch sport {
	case dfs.SportMLB:
		cfg.AllowsStacks = true
		if site == dfs.SiteDraftKings {
			cfg.Slots = []string{"P", "P", "C", "1B", "2B", "3B", "SS", "OF", "OF", "OF"}
			cfg.MaxCap = 50000
		} else {
			cfg.Slots = []string{"P", "C/1B", "2B", "3B", "SS", "OF", "OF", "OF", "UTIL"}
			cfg.MaxCap = 35000
		}
	case dfs.SportNFL:
		if site == dfs.SiteDraftKings {
			cfg.Slots = []string{"QB", "RB", "RB", "WR", "WR", "WR", "TE", "FLEX", "DST"}
			cfg.MaxCap = 50000
		} else {
			cfg.Slots = []string{"QB", "RB", "RB", "WR", "WR", "WR", "TE", "FLEX", "DST"}
			cfg.MaxCap = 60000
		}
	case dfs.SportNFLShowdown:
		cfg.CaptainMode = true
		if site == dfs.SiteDraftKings {
			cfg.Slots = []string{"CPT", "FLEX", "FLEX", "FLEX", "FLEX", "FLEX"}
			cfg.MaxCap = 50000
		} else {
			cfg.Slots = []string{"MVP", "FLEX", "FLEX", "FLEX", "FLEX"}
			cfg.MaxCap = 60000
		}
	case dfs.SportNASCAR:
		if site == dfs.SiteDraftKings {
			cfg.Slots = []string{"D", "D", "D", "D", "D", "D"}
			cfg.MaxCap = 50000
		} else {
			cfg.Slots = []string{"D", "D", "D", "D", "D"}
			cfg.MaxCap = 50000
		}
		// NASCAR rosters are position-less; every driver fills a D slot
		cfg.PositionAlias = map[string]string{"DRIVER": "D"}
		cfg.DefaultPosition = "D"
	default:
		return Config{}, fmt.Errorf("unknown sport %q", sport)
	}

	cfg.RosterSize = len(cfg.Slots)
	return cfg, nil
}

// Sports lists the supported optimizer page variants
func Sports() []dfs.Sport {
	return []dfs.Sport{dfs.SportMLB, dfs.SportNFL, dfs.SportNFLShowdown, dfs.SportNASCAR}
}
