package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationRegex = regexp.MustCompile(`^(\d+)(d|h|m|s)$`)

var ErrBadDuration = errors.New("invalid duration")

// ParseDuration accepts compact human durations such as "30s", "10m",
// "2h30m" or "1d12h". Units may appear at most once each and must be
// ordered largest to smallest.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, ErrBadDuration
	}

	units := map[string]time.Duration{
		"d": 24 * time.Hour,
		"h": time.Hour,
		"m": time.Minute,
		"s": time.Second,
	}
	order := []string{"d", "h", "m", "s"}

	var total time.Duration
	next := 0
	for raw != "" {
		idx := strings.IndexAny(raw, "dhms")
		if idx < 0 {
			return 0, ErrBadDuration
		}
		part := raw[:idx+1]
		raw = raw[idx+1:]

		match := durationRegex.FindStringSubmatch(part)
		if match == nil {
			return 0, ErrBadDuration
		}
		unit := match[2]
		pos := -1
		for i := next; i < len(order); i++ {
			if order[i] == unit {
				pos = i
				break
			}
		}
		if pos < 0 {
			return 0, ErrBadDuration
		}
		next = pos + 1

		value, err := strconv.Atoi(match[1])
		if err != nil || value <= 0 {
			return 0, ErrBadDuration
		}
		total += time.Duration(value) * units[unit]
	}
	if total <= 0 {
		return 0, ErrBadDuration
	}
	return total, nil
}

// FormatDuration renders a duration the way ParseDuration reads it.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}

	var parts []string
	if days := d / (24 * time.Hour); days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
		d -= days * 24 * time.Hour
	}
	if hours := d / time.Hour; hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
		d -= hours * time.Hour
	}
	if minutes := d / time.Minute; minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
		d -= minutes * time.Minute
	}
	if seconds := d / time.Second; seconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, "")
}
