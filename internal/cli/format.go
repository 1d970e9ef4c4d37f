package cli

import (
	"fmt"
	"time"

	"advisory-canvas/internal/models"
)

// FormatDateTime formats a timestamp in local time.
func FormatDateTime(t time.Time) string {
	return t.Local().Format("02-Jan-2006 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// FormatBytes formats a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatPoint formats a logical point.
func FormatPoint(p models.Point) string {
	return fmt.Sprintf("(%.1f, %.1f)", p.X, p.Y)
}

// FormatAnchors summarizes a shape's anchors for a table cell.
func FormatAnchors(s *models.Shape) string {
	g := s.Geometry
	if s.Type == models.ShapeRectangle {
		return fmt.Sprintf("%s %.0fx%.0f", FormatPoint(models.Point{X: g.Rect.X, Y: g.Rect.Y}), g.Rect.Width, g.Rect.Height)
	}
	switch len(g.Points) {
	case 0:
		return "-"
	case 1:
		return FormatPoint(g.Points[0])
	case 2:
		return FormatPoint(g.Points[0]) + " -> " + FormatPoint(g.Points[1])
	default:
		return fmt.Sprintf("%s ... %d points", FormatPoint(g.Points[0]), len(g.Points))
	}
}

// FormatTransform summarizes a non-identity transform.
func FormatTransform(t models.Transform) string {
	if t.IsIdentity() {
		return "-"
	}
	return fmt.Sprintf("move %s rot %.0f scale %.2gx%.2g", FormatPoint(models.Point{X: t.X, Y: t.Y}), t.Rotation, t.ScaleX, t.ScaleY)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
