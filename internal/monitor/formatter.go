package monitor

import (
	"fmt"
	"math"
)

// FormatDuration formats seconds as "Xh Ym", "Xm Ys" or "Xs".
func FormatDuration(seconds float64) string {
	total := int64(math.Round(seconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// FormatSpeed formats characters per second.
func FormatSpeed(cps float64) string {
	return fmt.Sprintf("%.1f chars/s", cps)
}

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// VisibleRatio returns the fraction of a document's frames that are visible.
func VisibleRatio(visible, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(visible) / float64(total)
}
