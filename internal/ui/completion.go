package ui

import (
	"fmt"

	"github.com/bamsammich/snapwatch/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  cycles 3  changes +12 -2 ~5  files 48,917  dirs 1,204  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	icon := "✓"
	if snap.CyclesFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  cycles %s  changes +%s -%s ~%s  files %s  dirs %s  time %s",
		icon,
		FormatCount(snap.CyclesCompleted),
		FormatCount(snap.Added),
		FormatCount(snap.Removed),
		FormatCount(snap.Modified),
		FormatCount(snap.FilesScanned),
		FormatCount(snap.DirsScanned),
		FormatDuration(snap.Elapsed),
	)

	if snap.Unreadable > 0 {
		base += fmt.Sprintf("  unreadable %s", FormatCount(snap.Unreadable))
	}

	base += fmt.Sprintf("  errors %d", snap.CyclesFailed)

	return base
}
