package ui

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bamsammich/snapwatch/internal/event"
	"github.com/bamsammich/snapwatch/internal/item"
	"github.com/bamsammich/snapwatch/internal/stats"
)

// FormatRate formats a per-second rate of change records.
func FormatRate(perSec float64) string {
	switch {
	case perSec <= 0:
		return "0/s"
	case perSec < 10:
		return fmt.Sprintf("%.1f/s", perSec)
	default:
		return FormatCount(int64(perSec+0.5)) + "/s"
	}
}

// FormatCount formats an integer with comma separators.
func FormatCount(n int64) string {
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		b.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatBytes wraps stats.FormatBytes for UI use.
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}

// FormatDuration formats elapsed time concisely.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// ChangeIcon returns the marker printed in front of a change record.
func ChangeIcon(t event.Type) string {
	switch t {
	case event.Added:
		return "+"
	case event.Removed:
		return "-"
	case event.Modified:
		return "~"
	default:
		return "·"
	}
}

// DisplayPath returns the path of ev for display, prefixed with the root
// when withRoot is set. Directories get a trailing slash.
func DisplayPath(ev event.Event, withRoot bool) string {
	p := ev.Path
	if withRoot {
		p = path.Join(ev.Root, p)
	}
	if ev.Item.Kind == item.KindDirectory && ev.Type != event.Removed {
		p += "/"
	}
	return p
}

// ChangeDetail describes what a change record changed. It is empty for
// removals.
func ChangeDetail(ev event.Event) string {
	switch ev.Type {
	case event.Added:
		if ev.Item.Kind == item.KindDirectory {
			return ""
		}
		return FormatBytes(ev.Item.Size)
	case event.Modified:
		return modifiedDetail(ev)
	default:
		return ""
	}
}

func modifiedDetail(ev event.Event) string {
	var parts []string
	if ev.Fields.Has(event.FieldName) {
		if ev.Old != nil {
			parts = append(parts, "renamed from "+ev.Old.Name)
		} else {
			parts = append(parts, "renamed")
		}
	}
	if ev.Fields.Has(event.FieldSize) {
		if ev.Old != nil {
			parts = append(parts, fmt.Sprintf("size %s → %s",
				FormatBytes(ev.Old.Size), FormatBytes(ev.Item.Size)))
		} else {
			parts = append(parts, "size "+FormatBytes(ev.Item.Size))
		}
	}
	if ev.Fields.Has(event.FieldModified) {
		parts = append(parts, "modified "+ev.Item.Modified.Local().Format(time.DateTime))
	}
	if ev.Fields.Has(event.FieldCopying) {
		if ev.Item.Copying {
			parts = append(parts, "copying")
		} else {
			parts = append(parts, "copy finished")
		}
	}
	return strings.Join(parts, ", ")
}

// DescribeChange renders a change record as one line without a newline.
func DescribeChange(ev event.Event, withRoot bool) string {
	line := ChangeIcon(ev.Type) + " " + DisplayPath(ev, withRoot)
	if d := ChangeDetail(ev); d != "" {
		line += "  " + d
	}
	return line
}

// truncPath shortens a path to fit within maxLen characters.
func truncPath(p string, maxLen int) string {
	if len(p) <= maxLen {
		return p
	}
	if maxLen <= 3 {
		return p[:maxLen]
	}
	return "..." + p[len(p)-maxLen+3:]
}
