package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimeAgo renders the distance between t and now in coarse human units
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24), "day") + " ago"
	case d < 365*24*time.Hour:
		return plural(int(d.Hours()/(24*30)), "month") + " ago"
	default:
		return plural(int(d.Hours()/(24*365)), "year") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|#^\[\]]+`)
	repeatedSpace       = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns a note title into a filesystem-safe base name
func SanitizeFilename(title string) string {
	name := unsafeFilenameChars.ReplaceAllString(title, " ")
	name = repeatedSpace.ReplaceAllString(strings.TrimSpace(name), " ")
	name = strings.Trim(name, ". ")
	if runes := []rune(name); len(runes) > 100 {
		name = strings.TrimSpace(string(runes[:100]))
	}
	if name == "" {
		return "untitled"
	}
	return name
}

// FormatDuration renders a run duration compactly
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
