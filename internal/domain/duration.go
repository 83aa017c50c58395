package domain

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute

	// A day unit means an 8-hour working day, Jira Cloud's default
	// time-tracking day. The server always sends absolute seconds to the
	// tracker, so the remote work-day setting cannot reinterpret it.
	secondsPerDay = 8 * secondsPerHour
)

// ParseDuration converts a compact duration string like "2h", "1d" or
// "1h 30m" into seconds. Units are d, h and m, case-insensitive, with
// optional whitespace between tokens; each unit may appear at most once
// and every magnitude must be positive. The function is pure: same input,
// same result, no I/O.
func ParseDuration(s string) (int64, error) {
	if s == "" {
		return 0, NewToolError(KindInvalidDurationFormat, "duration is empty")
	}

	var total int64
	seen := map[byte]bool{}
	parsed := false

	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if start == i {
			return 0, NewToolError(KindInvalidDurationFormat,
				"invalid duration %q: expected a number at position %d", s, start)
		}

		var value int64
		for _, c := range []byte(s[start:i]) {
			value = value*10 + int64(c-'0')
			if value > 1<<40 {
				return 0, NewToolError(KindInvalidDurationFormat,
					"invalid duration %q: value too large", s)
			}
		}
		if value == 0 {
			return 0, NewToolError(KindInvalidDurationFormat,
				"invalid duration %q: magnitude must be positive", s)
		}

		if i >= len(s) {
			return 0, NewToolError(KindInvalidDurationFormat,
				"invalid duration %q: missing unit after number", s)
		}
		unit := lowerByte(s[i])
		i++

		var unitSeconds int64
		switch unit {
		case 'd':
			unitSeconds = secondsPerDay
		case 'h':
			unitSeconds = secondsPerHour
		case 'm':
			unitSeconds = secondsPerMinute
		default:
			return 0, NewToolError(KindInvalidDurationFormat,
				"invalid duration %q: unknown unit %q (use d, h or m)", s, string(s[i-1]))
		}

		if seen[unit] {
			return 0, NewToolError(KindInvalidDurationFormat,
				"invalid duration %q: unit %q appears more than once", s, string(unit))
		}
		seen[unit] = true

		total += value * unitSeconds
		parsed = true
	}

	if !parsed {
		return 0, NewToolError(KindInvalidDurationFormat, "invalid duration %q: no tokens", s)
	}
	return total, nil
}

func lowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
