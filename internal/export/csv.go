// Package export renders accumulated lineups as CSV files for upload into
// DFS site entry editors.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/sites"
)

// Lineups renders one row per lineup under a slot header row. Fields
// containing commas, quotes, or newlines are quoted with internal quotes
// doubled (RFC 4180), so names like `Smith, Jr.` survive a round trip.
func Lineups(cfg sites.Config, lineups []dfs.Lineup) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, cfg.RosterSize+2)
	for i := 0; i < cfg.RosterSize; i++ {
		header = append(header, cfg.SlotHeader(i))
	}
	header = append(header, "Salary", "Total")
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, lineup := range lineups {
		row := make([]string, 0, cfg.RosterSize+2)
		row = append(row, lineup.Players...)
		for len(row) < cfg.RosterSize {
			row = append(row, "")
		}
		row = append(row,
			strconv.Itoa(lineup.TotalSalary),
			strconv.FormatFloat(lineup.TotalMetric, 'f', 2, 64),
		)
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName names an export download for a scope
func FileName(cfg sites.Config) string {
	return fmt.Sprintf("lineups_%s_%s.csv", cfg.Sport, cfg.Site)
}
