package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/sites"
)

func TestLineupsHeaderAndRows(t *testing.T) {
	cfg, err := sites.GetConfig(dfs.SportNASCAR, dfs.SiteDraftKings)
	require.NoError(t, err)

	out, err := Lineups(cfg, []dfs.Lineup{
		{
			Players:     []string{"Kyle Larson", "Denny Hamlin", "Chase Elliott", "Ryan Blaney", "William Byron", "Bubba Wallace"},
			TotalSalary: 49800,
			TotalMetric: 312.5,
		},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"D", "D", "D", "D", "D", "D", "Salary", "Total"}, records[0])
	assert.Equal(t, "Kyle Larson", records[1][0])
	assert.Equal(t, "49800", records[1][6])
	assert.Equal(t, "312.50", records[1][7])
}

func TestLineupsRoundTripsAwkwardNames(t *testing.T) {
	cfg, err := sites.GetConfig(dfs.SportNASCAR, dfs.SiteFanDuel)
	require.NoError(t, err)

	names := []string{
		`Martin Truex, Jr.`,
		`Ricky "Rowdy" Stenhouse`,
		"Daniel Suárez",
		`Earnhardt, Dale, Jr.`,
		"Ross Chastain",
	}
	out, err := Lineups(cfg, []dfs.Lineup{
		{Players: names, TotalSalary: 34900, TotalMetric: 250},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, names, records[1][:cfg.RosterSize])
}

func TestLineupsPadsShortRosters(t *testing.T) {
	cfg, err := sites.GetConfig(dfs.SportMLB, dfs.SiteDraftKings)
	require.NoError(t, err)

	out, err := Lineups(cfg, []dfs.Lineup{
		{Players: []string{"Gerrit Cole"}, TotalSalary: 11000, TotalMetric: 20.1},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	row := records[1]
	require.Len(t, row, cfg.RosterSize+2)
	assert.Equal(t, "Gerrit Cole", row[0])
	assert.Equal(t, "", row[1])
}

func TestLineupsEmptyInputStillWritesHeader(t *testing.T) {
	cfg, err := sites.GetConfig(dfs.SportNFL, dfs.SiteDraftKings)
	require.NoError(t, err)

	out, err := Lineups(cfg, nil)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "QB", records[0][0])
}

func TestFileName(t *testing.T) {
	cfg, err := sites.GetConfig(dfs.SportMLB, dfs.SiteFanDuel)
	require.NoError(t, err)
	assert.Equal(t, "lineups_mlb_fd.csv", FileName(cfg))
}
