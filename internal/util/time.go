package util

import (
	"fmt"
	"time"
)

// FormatDuration formats a duration as a short human-readable string.
// Examples: "45s", "2m 34s", "1h 23m"
func FormatDuration(d time.Duration) string {
	totalSeconds := int64(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes %= 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// FormatHumanTime converts an RFC3339 timestamp to human-readable local time.
func FormatHumanTime(rfc3339 string) string {
	if rfc3339 == "" || rfc3339 == "unknown" {
		return "unknown"
	}
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	return t.Local().Format("2 Jan 2006 15:04 MST")
}
