// Package wretention parses the compact retention-definition strings used on
// the command line and in configuration files ("60s:1d", "1m:30d",
// "10:1440") into the (secondsPerPoint, points) pairs that build an archive
// layout.
package wretention

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xtxerr/whisper/internal/werrors"
)

// unitMultipliers maps a unit name to its length in seconds.
var unitMultipliers = map[string]uint32{
	"seconds": 1,
	"minutes": 60,
	"hours":   3600,
	"days":    86400,
	"weeks":   86400 * 7,
	"years":   86400 * 365,
}

var unitOrder = []string{"seconds", "minutes", "hours", "days", "weeks", "years"}

// unitString resolves an abbreviation (any non-empty prefix of a unit name,
// e.g. "s", "min", "h") to its canonical unit name.
func unitString(s string) (string, error) {
	for _, u := range unitOrder {
		if strings.HasPrefix(u, s) {
			return u, nil
		}
	}
	return "", fmt.Errorf("invalid unit %q", s)
}

var numberWithUnit = regexp.MustCompile(`^(\d+)([a-z]+)$`)

// Def is one archive definition: a step in seconds and a point count.
type Def struct {
	SecondsPerPoint uint32
	Points          uint32
}

// Parse parses a single "precision:points" retention definition. precision
// and points may each be a bare integer (seconds, or points respectively)
// or a number suffixed with a unit (s, m/min, h, d, w, y); when points
// carries a unit it is interpreted as a retention duration and converted to
// a point count by dividing by precision.
func Parse(retentionDef string) (Def, error) {
	parts := strings.SplitN(strings.TrimSpace(retentionDef), ":", 2)
	if len(parts) != 2 {
		return Def{}, werrors.Wrapf(werrors.ErrInvalidConfiguration, "invalid retention definition %q", retentionDef)
	}

	precision, err := parseAmount(parts[0], 1)
	if err != nil {
		return Def{}, werrors.Wrapf(werrors.ErrInvalidConfiguration, "invalid precision in %q: %v", retentionDef, err)
	}

	points, err := parseAmount(parts[1], precision)
	if err != nil {
		return Def{}, werrors.Wrapf(werrors.ErrInvalidConfiguration, "invalid points in %q: %v", retentionDef, err)
	}

	return Def{SecondsPerPoint: precision, Points: points}, nil
}

// parseAmount parses either a bare integer, or a "<n><unit>" duration which
// is converted to a count of divisor-sized units (divisor == 1 to parse a
// precision in seconds; divisor == the archive's precision to parse a
// points field expressed as a retention duration).
func parseAmount(s string, divisor uint32) (uint32, error) {
	if isDigits(s) {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, err
		}
		return uint32(n), nil
	}

	m := numberWithUnit.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid specification %q", s)
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, err
	}
	unit, err := unitString(m[2])
	if err != nil {
		return 0, err
	}
	seconds := uint32(n) * unitMultipliers[unit]
	if divisor == 1 {
		return seconds, nil
	}
	return seconds / divisor, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseAll parses a comma-separated list of retention definitions, e.g.
// "60s:1d,1h:30d,1d:5y".
func ParseAll(spec string) ([]Def, error) {
	fields := strings.Split(spec, ",")
	defs := make([]Def, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		d, err := Parse(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	if len(defs) == 0 {
		return nil, werrors.Wrapf(werrors.ErrInvalidConfiguration, "no retention definitions in %q", spec)
	}
	return defs, nil
}
