package watch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ParseInterval parses a Go duration, additionally accepting a leading day
// count ("7d", "1d12h").
func ParseInterval(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("interval must be positive: %s", s)
		}
		return d, nil
	}

	daysPart, rest, found := strings.Cut(s, "d")
	if !found {
		return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
	}
	days, err := strconv.Atoi(daysPart)
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("invalid day count in interval: %s", s)
	}

	d := time.Duration(days) * day
	if rest != "" {
		extra, err := time.ParseDuration(rest)
		if err != nil || extra < 0 {
			return 0, fmt.Errorf("invalid interval format: %s", s)
		}
		d += extra
	}
	return d, nil
}

// FormatInterval renders d compactly, using days above 24h ("1d12h")
func FormatInterval(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < day:
		hours, mins := int(d.Hours()), int(d.Minutes())%60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days, hours := int(d/day), int(d.Hours())%24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}
