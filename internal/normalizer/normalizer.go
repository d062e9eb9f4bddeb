// Package normalizer turns raw projection-feed rows into canonical player
// pools. The feeds are JSON dumps of spreadsheet tabs, so column names,
// numeric formatting, and percent scaling drift between feed versions; the
// normalizer absorbs all of that in one place.
package normalizer

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup-client/internal/dfs"
	"github.com/stitts-dev/dfs-lineup-client/internal/sites"
)

var positionSeparators = []string{"/", ",", ";", "|"}

// Normalize converts raw feed rows into an ordered Player pool for the
// given site config. Rows missing a name, or with no eligible positions
// after parsing, are dropped. Identical input always yields an identical
// ordered result.
func Normalize(rawRows []map[string]interface{}, cfg sites.Config) []dfs.Player {
	pool := make([]dfs.Player, 0, len(rawRows))
	seen := make(map[string]bool, len(rawRows))
	dropped := 0

	for _, row := range rawRows {
		name := strings.TrimSpace(resolveString(row, cfg.Aliases[sites.FieldName]))
		if name == "" {
			dropped++
			continue
		}
		// name is the pool identity; later duplicates lose
		if seen[name] {
			dropped++
			continue
		}

		positions := parsePositions(resolveString(row, cfg.Aliases[sites.FieldPositions]), cfg.PositionAlias)
		if len(positions) == 0 && cfg.DefaultPosition != "" {
			positions = []string{cfg.DefaultPosition}
		}
		if len(positions) == 0 {
			dropped++
			continue
		}

		salary := int(resolveNumber(row, cfg.Aliases[sites.FieldSalary]))
		if salary < 0 {
			salary = 0
		}

		player := dfs.Player{
			Name:        name,
			Team:        strings.ToUpper(strings.TrimSpace(resolveString(row, cfg.Aliases[sites.FieldTeam]))),
			Opponent:    strings.ToUpper(strings.TrimSpace(resolveString(row, cfg.Aliases[sites.FieldOpponent]))),
			Positions:   positions,
			Salary:      salary,
			Projection:  resolveNumber(row, cfg.Aliases[sites.FieldProjection]),
			Floor:       resolveNumber(row, cfg.Aliases[sites.FieldFloor]),
			Ceiling:     resolveNumber(row, cfg.Aliases[sites.FieldCeiling]),
			Ownership:   asFraction(resolveNumber(row, cfg.Aliases[sites.FieldOwnership])),
			OptimalRate: asFraction(resolveNumber(row, cfg.Aliases[sites.FieldOptimalRate])),
			Tag:         strings.ToUpper(strings.TrimSpace(resolveString(row, cfg.Aliases[sites.FieldTag]))),
		}
		seen[name] = true
		pool = append(pool, player)
	}

	if dropped > 0 {
		logrus.WithFields(logrus.Fields{
			"sport":   cfg.Sport,
			"site":    cfg.Site,
			"kept":    len(pool),
			"dropped": dropped,
		}).Debug("Normalized projection feed")
	}

	return pool
}

// resolveString returns the first present, non-empty alias value as a string
func resolveString(row map[string]interface{}, aliases []string) string {
	for _, alias := range aliases {
		v, ok := row[alias]
		if !ok || v == nil {
			continue
		}
		s := coerceString(v)
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// resolveNumber returns the first present, parseable alias value as a float
func resolveNumber(row map[string]interface{}, aliases []string) float64 {
	for _, alias := range aliases {
		v, ok := row[alias]
		if !ok || v == nil {
			continue
		}
		if f, ok := coerceNumber(v); ok {
			return f
		}
	}
	return 0
}

func coerceString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// coerceNumber parses JSON numbers and spreadsheet-formatted numeric
// strings ("$5,200", "12.5%").
func coerceNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		s = strings.ReplaceAll(s, "$", "")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSuffix(s, "%")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asFraction normalizes percent-like values to a 0-1 fraction. Feeds store
// percents either as fractions (0.42) or as percent numbers (42).
func asFraction(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	if v < 0 {
		return 0
	}
	return v
}

// parsePositions splits, upper-cases, and canonicalizes position text
func parsePositions(raw string, alias map[string]string) []string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	for _, sep := range positionSeparators {
		text = strings.ReplaceAll(text, sep, "/")
	}

	parts := strings.Split(text, "/")
	out := make([]string, 0, len(parts))
	added := make(map[string]bool, len(parts))
	for _, part := range parts {
		pos := strings.ToUpper(strings.TrimSpace(part))
		if pos == "" {
			continue
		}
		if canonical, ok := alias[pos]; ok {
			pos = canonical
		}
		if !added[pos] {
			added[pos] = true
			out = append(out, pos)
		}
	}
	return out
}
