package parser

import (
	"fmt"
	"strconv"
)

// durationUnits maps each SysQL duration unit to its length in
// nanoseconds: calendar units (Y, M) use average lengths since a
// duration literal has no anchor date to compute an exact calendar
// span against.
var durationUnits = map[string]int64{
	"Y":  int64(365.2425 * 24 * 3600 * 1e9),
	"M":  int64(30.436875 * 24 * 3600 * 1e9),
	"D":  24 * 3600 * 1e9,
	"h":  3600 * 1e9,
	"m":  60 * 1e9,
	"s":  1e9,
	"ms": 1e6,
	"us": 1e3,
	"ns": 1,
}

// parseDuration interprets a lexer DURATION literal such as "90s",
// "1h30m", or "2D" as a nanosecond count. Units are matched longest-unit
// first within a run of digits, case-sensitively (M = months, m =
// minutes, per spec.md §4.4).
func parseDuration(lit string) (int64, error) {
	neg := false
	i := 0
	if i < len(lit) && (lit[i] == '+' || lit[i] == '-') {
		neg = lit[i] == '-'
		i++
	}
	var total int64
	for i < len(lit) {
		start := i
		for i < len(lit) && lit[i] >= '0' && lit[i] <= '9' {
			i++
		}
		if i == start {
			return 0, fmt.Errorf("duration %q: expected digits at offset %d", lit, start)
		}
		n, err := strconv.ParseInt(lit[start:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("duration %q: %w", lit, err)
		}
		unit, adv, ok := matchUnit(lit[i:])
		if !ok {
			return 0, fmt.Errorf("duration %q: unrecognized unit at offset %d", lit, i)
		}
		total += n * unit
		i += adv
	}
	if neg {
		total = -total
	}
	return total, nil
}

func matchUnit(rest string) (unit int64, advance int, ok bool) {
	for _, twoLetter := range []string{"ms", "us", "ns"} {
		if len(rest) >= 2 && rest[:2] == twoLetter {
			return durationUnits[twoLetter], 2, true
		}
	}
	if len(rest) >= 1 {
		if u, ok := durationUnits[rest[:1]]; ok {
			return u, 1, true
		}
	}
	return 0, 0, false
}
