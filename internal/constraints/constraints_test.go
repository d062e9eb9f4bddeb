package constraints

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/sites"
)

func newModel(t *testing.T) *Model {
	t.Helper()
	cfg, err := sites.GetConfig(dfs.SportMLB, dfs.SiteDraftKings)
	require.NoError(t, err)
	return NewModel(cfg)
}

func TestLockExcludeMutuallyExclusive(t *testing.T) {
	m := newModel(t)

	m.SetLock("Trout")
	assert.True(t, m.IsLocked("Trout"))
	assert.False(t, m.IsExcluded("Trout"))

	m.SetExclude("Trout")
	assert.False(t, m.IsLocked("Trout"))
	assert.True(t, m.IsExcluded("Trout"))

	m.SetLock("Trout")
	assert.True(t, m.IsLocked("Trout"))
	assert.False(t, m.IsExcluded("Trout"))

	// property holds under any interleaving
	names := []string{"A", "B", "A", "C", "B", "A"}
	for i, n := range names {
		if i%2 == 0 {
			m.SetLock(n)
		} else {
			m.SetExclude(n)
		}
		assert.False(t, m.IsLocked(n) && m.IsExcluded(n))
	}
}

func TestSetExposureMinWins(t *testing.T) {
	m := newModel(t)

	b := m.SetExposure("A", 80, 50)
	assert.Equal(t, ExposureBounds{Min: 80, Max: 80}, b)

	b = m.SetExposure("B", -10, 150)
	assert.Equal(t, ExposureBounds{Min: 0, Max: 100}, b)

	b = m.SetExposure("C", 30, 60)
	assert.Equal(t, ExposureBounds{Min: 30, Max: 60}, b)
}

func TestSetBoostClamping(t *testing.T) {
	m := newModel(t)

	assert.Equal(t, 3, m.SetBoost("A", 3))
	assert.Equal(t, 6, m.SetBoost("A", 5))
	assert.Equal(t, -6, m.SetBoost("A", -20))

	// boost of +2 raises projection by 6%
	m.SetBoost("B", 2)
	assert.InDelta(t, 10.6, m.BoostedProjection("B", 10), 1e-9)
	assert.InDelta(t, 10.0, m.BoostedProjection("unknown", 10), 1e-9)
}

func TestBuildRequest_Scenario(t *testing.T) {
	m := newModel(t)
	m.Cap = 9000
	m.Objective = dfs.ObjectiveProjection
	m.LineupCount = 1

	pool := []dfs.Player{
		{Name: "A", Positions: []string{"OF"}, Salary: 5000, Projection: 10},
		{Name: "B", Positions: []string{"OF"}, Salary: 4000, Projection: 8},
	}

	req, err := m.BuildRequest(pool)
	require.NoError(t, err)

	assert.Equal(t, 9000, req.Cap)
	assert.Equal(t, dfs.ObjectiveProjection, req.Objective)
	assert.Equal(t, 1, req.N)
	require.Len(t, req.Players, 2)
	assert.Equal(t, "A", req.Players[0].Name)
	assert.Equal(t, 5000, req.Players[0].Salary)
	assert.InDelta(t, 10, req.Players[0].Projection, 1e-9)
	assert.Equal(t, "B", req.Players[1].Name)
	assert.Equal(t, 4000, req.Players[1].Salary)
	assert.InDelta(t, 8, req.Players[1].Projection, 1e-9)
}

func TestBuildRequest_FailsFast(t *testing.T) {
	pool := []dfs.Player{{Name: "A", Positions: []string{"OF"}, Salary: 5000}}

	t.Run("non-positive cap", func(t *testing.T) {
		m := newModel(t)
		m.Cap = 0
		_, err := m.BuildRequest(pool)
		assert.ErrorIs(t, err, ErrInvalidConstraint)
	})

	t.Run("lineup count below one", func(t *testing.T) {
		m := newModel(t)
		m.LineupCount = 0
		_, err := m.BuildRequest(pool)
		assert.ErrorIs(t, err, ErrInvalidConstraint)
	})

	t.Run("locked player missing from pool", func(t *testing.T) {
		m := newModel(t)
		m.SetLock("Ghost")
		_, err := m.BuildRequest(pool)
		assert.ErrorIs(t, err, ErrInvalidConstraint)
	})

	t.Run("cap above site maximum", func(t *testing.T) {
		m := newModel(t)
		m.Cap = 1_000_000
		_, err := m.BuildRequest(pool)
		assert.ErrorIs(t, err, ErrInvalidConstraint)
	})
}

func TestBuildRequest_ExcludesAndTeamFilter(t *testing.T) {
	m := newModel(t)
	pool := []dfs.Player{
		{Name: "A", Team: "NYY", Positions: []string{"OF"}, Salary: 5000},
		{Name: "B", Team: "BOS", Positions: []string{"OF"}, Salary: 4000},
		{Name: "C", Team: "NYY", Positions: []string{"1B"}, Salary: 3000},
	}

	m.SetExclude("C")
	m.SetTeamFilter([]string{"NYY"})

	req, err := m.BuildRequest(pool)
	require.NoError(t, err)
	require.Len(t, req.Players, 1)
	assert.Equal(t, "A", req.Players[0].Name)
	assert.Equal(t, []string{"C"}, req.Excludes)
}

func TestBuildRequest_ExposureAndBoostMaps(t *testing.T) {
	m := newModel(t)
	pool := []dfs.Player{{Name: "A", Positions: []string{"OF"}, Salary: 5000}}

	m.SetExposure("A", 20, 70)
	m.SetBoost("A", 2)

	req, err := m.BuildRequest(pool)
	require.NoError(t, err)
	assert.Equal(t, 20.0, req.MinPct["A"])
	assert.Equal(t, 70.0, req.MaxPct["A"])
	assert.Equal(t, 2, req.Boosts["A"])
}

func TestReset(t *testing.T) {
	m := newModel(t)
	m.SetLock("A")
	m.SetBoost("B", 3)
	m.Cap = 40000
	m.LineupCount = 99

	m.Reset()

	assert.False(t, m.IsLocked("A"))
	assert.Equal(t, 0, m.Boost("B"))
	assert.Equal(t, 50000, m.Cap)
	assert.Equal(t, 20, m.LineupCount)
}

func TestStackRulesOnlyWhenAllowed(t *testing.T) {
	pool := []dfs.Player{{Name: "A", Positions: []string{"QB"}, Salary: 5000}}

	nflCfg, err := sites.GetConfig(dfs.SportNFL, dfs.SiteDraftKings)
	require.NoError(t, err)
	nfl := NewModel(nflCfg)
	nfl.StackRules = &dfs.StackRules{PrimarySize: 4}
	req, err := nfl.BuildRequest(pool)
	require.NoError(t, err)
	assert.Nil(t, req.Stacks, "NFL classic does not carry hitter stacks")

	mlb := newModel(t)
	mlb.StackRules = &dfs.StackRules{PrimarySize: 4, SecondarySize: 3, AvoidOppPitcher: true}
	pool[0].Positions = []string{"OF"}
	req, err = mlb.BuildRequest(pool)
	require.NoError(t, err)
	require.NotNil(t, req.Stacks)
	assert.Equal(t, 4, req.Stacks.PrimarySize)
	assert.True(t, req.Stacks.AvoidOppPitcher)
}
