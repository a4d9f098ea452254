package ui

import (
	"fmt"

	"github.com/bamsammich/ferry/internal/stats"
)

// CompletionSummary builds the final summary line from a snapshot.
// Format: done ✓  entries 48,917  size 2.1 GiB  avg 641 MB/s  time 3m 17s  skipped 0  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesWritten) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.EntriesFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  entries %s  size %s  avg %s  time %s",
		icon,
		FormatCount(snap.EntriesDone),
		FormatBytes(snap.BytesWritten),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)
	if snap.Verified > 0 {
		base += "  verified " + FormatCount(snap.Verified)
	}
	return base + fmt.Sprintf("  skipped %d  errors %d", snap.EntriesSkipped, snap.EntriesFailed)
}
