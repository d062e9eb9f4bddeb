package accumulator

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
)

func TestAccept_ScenarioTwoPlayers(t *testing.T) {
	acc := New(1, nil)

	acc.Accept(dfs.Lineup{Players: []string{"A", "B"}, TotalSalary: 9000, TotalMetric: 18})
	acc.Finish("")

	assert.Equal(t, 1, acc.Count())
	assert.InDelta(t, 100, acc.ExposurePct("A"), 1e-9)
	assert.InDelta(t, 100, acc.ExposurePct("B"), 1e-9)
	assert.InDelta(t, 0, acc.ExposurePct("C"), 1e-9)

	p := acc.Progress()
	assert.True(t, p.Finished)
	assert.Empty(t, p.StopReason)
}

// recount recomputes exposure from nothing but the lineup list
func recount(lineups []dfs.Lineup, name string) float64 {
	count := 0
	for _, l := range lineups {
		if l.Contains(name) {
			count++
		}
	}
	total := len(lineups)
	if total < 1 {
		total = 1
	}
	return float64(count) / float64(total) * 100
}

func TestExposure_MatchesFullRecount(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	acc := New(50, nil)

	for i := 0; i < 50; i++ {
		size := 3 + rng.Intn(4)
		perm := rng.Perm(len(names))
		players := make([]string, 0, size)
		for _, idx := range perm[:size] {
			players = append(players, names[idx])
		}
		acc.Accept(dfs.Lineup{Players: players, TotalSalary: 40000 + i, TotalMetric: float64(i)})

		// the incrementally maintained value must equal a from-scratch
		// recount after every single accept
		lineups := acc.Lineups()
		for _, name := range names {
			assert.InDelta(t, recount(lineups, name), acc.ExposurePct(name), 1e-9,
				"player %s after %d lineups", name, i+1)
		}
	}

	for _, row := range acc.Snapshot() {
		assert.InDelta(t, recount(acc.Lineups(), row.Name), row.Percentage, 1e-9)
	}
}

func TestReset_StartsNewRun(t *testing.T) {
	acc := New(10, nil)
	acc.Accept(dfs.Lineup{Players: []string{"A"}})
	acc.Accept(dfs.Lineup{Players: []string{"A"}})
	require.Equal(t, 2, acc.Count())

	acc.Reset()

	assert.Equal(t, 0, acc.Count())
	assert.InDelta(t, 0, acc.ExposurePct("A"), 1e-9)
	assert.Empty(t, acc.Snapshot())
	assert.False(t, acc.Progress().Finished)
}

func TestFinish_EarlyStopRetainsPartials(t *testing.T) {
	acc := New(20, nil)
	for i := 0; i < 7; i++ {
		acc.Accept(dfs.Lineup{Players: []string{fmt.Sprintf("P%d", i)}})
	}

	acc.Finish("time_limit")

	p := acc.Progress()
	assert.Equal(t, 7, p.Count)
	assert.Equal(t, 20, p.Requested)
	assert.True(t, p.Finished)
	assert.Equal(t, "time_limit", p.StopReason)
	assert.Len(t, acc.Lineups(), 7, "partial results are retained")
}

func TestTeamSnapshot_StackShapes(t *testing.T) {
	teamOf := map[string]string{
		"A1": "NYY", "A2": "NYY", "A3": "NYY",
		"B1": "BOS", "B2": "BOS",
	}
	acc := New(2, teamOf)

	acc.Accept(dfs.Lineup{Players: []string{"A1", "A2", "A3", "B1"}})
	acc.Accept(dfs.Lineup{Players: []string{"A1", "B1", "B2"}})

	teams := acc.TeamSnapshot()
	require.Len(t, teams, 2)

	byTeam := make(map[string]TeamExposure)
	for _, te := range teams {
		byTeam[te.Team] = te
	}

	nyy := byTeam["NYY"]
	assert.Equal(t, 4, nyy.Count)
	assert.InDelta(t, 100, nyy.Percentage, 1e-9)
	assert.Equal(t, map[int]int{3: 1, 1: 1}, nyy.PerLineup)

	bos := byTeam["BOS"]
	assert.Equal(t, 3, bos.Count)
	assert.InDelta(t, 100, bos.Percentage, 1e-9)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, bos.PerLineup)
}

func TestSnapshot_StableOrdering(t *testing.T) {
	acc := New(3, nil)
	acc.Accept(dfs.Lineup{Players: []string{"B", "C"}})
	acc.Accept(dfs.Lineup{Players: []string{"A", "C"}})
	acc.Accept(dfs.Lineup{Players: []string{"C"}})

	snap := acc.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "C", snap[0].Name)
	// equal percentages tie-break on name
	assert.Equal(t, "A", snap[1].Name)
	assert.Equal(t, "B", snap[2].Name)
}
