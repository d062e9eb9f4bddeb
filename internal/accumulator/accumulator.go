// Package accumulator collects streamed lineups for one optimization run
// and derives live exposure statistics from them. Every aggregate is a pure
// function of the accumulated lineup list, so a from-scratch recount always
// matches the incrementally maintained values.
package accumulator

import (
	"sort"
	"sync"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
)

// Progress reflects whether a run ended and why
type Progress struct {
	Count      int    `json:"count"`
	Requested  int    `json:"requested"`
	Finished   bool   `json:"finished"`
	StopReason string `json:"stop_reason,omitempty"`
}

// PlayerExposure is one row of an exposure snapshot
type PlayerExposure struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TeamExposure aggregates exposure at the team level. PerLineup histograms
// how many lineups use exactly N players from the team (stack shapes).
type TeamExposure struct {
	Team       string      `json:"team"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
	PerLineup  map[int]int `json:"per_lineup"`
}

// Accumulator gathers lineups in arrival order. Safe for concurrent use;
// the solver dispatch goroutine appends while HTTP handlers read.
type Accumulator struct {
	mu          sync.RWMutex
	lineups     []dfs.Lineup
	playerCount map[string]int
	requested   int
	finished    bool
	stopReason  string
	teamOf      map[string]string
}

// New creates an accumulator for a run expected to produce `requested`
// lineups. teamOf maps player names to teams for team-level aggregates;
// nil disables them.
func New(requested int, teamOf map[string]string) *Accumulator {
	return &Accumulator{
		playerCount: make(map[string]int),
		requested:   requested,
		teamOf:      teamOf,
	}
}

// Accept appends a lineup. Ordering follows the solver stream exactly.
func (a *Accumulator) Accept(lineup dfs.Lineup) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lineups = append(a.lineups, lineup)
	for _, name := range lineup.Players {
		a.playerCount[name]++
	}
}

// Reset discards all accumulated state for a new run
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lineups = nil
	a.playerCount = make(map[string]int)
	a.finished = false
	a.stopReason = ""
}

// Finish marks the run complete. An empty reason means a full result; a
// non-empty reason is an early stop and is informational, not an error.
// Everything received so far is retained.
func (a *Accumulator) Finish(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished = true
	a.stopReason = reason
}

// Count returns the number of accumulated lineups
func (a *Accumulator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.lineups)
}

// Progress returns run progress for display
func (a *Accumulator) Progress() Progress {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Progress{
		Count:      len(a.lineups),
		Requested:  a.requested,
		Finished:   a.finished,
		StopReason: a.stopReason,
	}
}

// Lineups returns the accumulated lineups in arrival order
func (a *Accumulator) Lineups() []dfs.Lineup {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]dfs.Lineup, len(a.lineups))
	copy(out, a.lineups)
	return out
}

// ExposurePct returns the percentage of accumulated lineups containing the
// named player
func (a *Accumulator) ExposurePct(name string) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return pct(a.playerCount[name], len(a.lineups))
}

// Snapshot returns per-player exposure for every player seen so far,
// sorted by exposure descending then name for a stable order.
func (a *Accumulator) Snapshot() []PlayerExposure {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]PlayerExposure, 0, len(a.playerCount))
	for name, count := range a.playerCount {
		out = append(out, PlayerExposure{
			Name:       name,
			Count:      count,
			Percentage: pct(count, len(a.lineups)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TeamSnapshot derives team exposure and stack-shape histograms from the
// accumulated lineups. Players with no known team are grouped under "".
func (a *Accumulator) TeamSnapshot() []TeamExposure {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.teamOf == nil {
		return nil
	}

	teamTotals := make(map[string]int)
	shapes := make(map[string]map[int]int)
	for _, lineup := range a.lineups {
		perTeam := make(map[string]int)
		for _, name := range lineup.Players {
			perTeam[a.teamOf[name]]++
		}
		for team, n := range perTeam {
			teamTotals[team] += n
			if shapes[team] == nil {
				shapes[team] = make(map[int]int)
			}
			shapes[team][n]++
		}
	}

	out := make([]TeamExposure, 0, len(teamTotals))
	for team, total := range teamTotals {
		lineupsUsing := 0
		for _, lineupsWithN := range shapes[team] {
			lineupsUsing += lineupsWithN
		}
		out = append(out, TeamExposure{
			Team:       team,
			Count:      total,
			Percentage: pct(lineupsUsing, len(a.lineups)),
			PerLineup:  shapes[team],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].Team < out[j].Team
	})
	return out
}

func pct(count, total int) float64 {
	if total < 1 {
		total = 1
	}
	return float64(count) / float64(total) * 100
}
