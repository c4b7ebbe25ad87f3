package utils

import (
	"fmt"
	"time"
)

// FormatLastActive renders a timestamp relative to now for roster display.
// Stateless: the caller supplies now so output is reproducible.
func FormatLastActive(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}

	diff := now.Sub(*t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hr ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return t.Format("Monday 3:04 PM")
	default:
		return t.Format("Jan 2, 2006")
	}
}
