package tui

import (
	"fmt"
	"strings"

	"github.com/bamsammich/ferry/internal/stats"
	"github.com/bamsammich/ferry/internal/ui"
)

// rateView shows throughput instead of individual entries; it is the
// readable view once thousands of small entries fly by each second.
type rateView struct{}

func (r rateView) view(width int, snap stats.Snapshot, collector stats.Reader) string {
	if width < 20 {
		width = 20
	}

	var b strings.Builder

	// Big throughput number.
	speed := collector.RollingSpeed(5)
	b.WriteString("  " + styleBigNumber.Render(ui.FormatRate(speed)))
	b.WriteString("\n\n")

	// Full-width sparkline (60-second history).
	sparkWidth := max(width-4, 10)
	spark := ui.Sparkline(collector.SparklineData(sparkWidth), sparkWidth)
	b.WriteString("  " + styleSparkline.Render(spark))
	b.WriteString("\n\n")

	eps := collector.RollingEntriesPerSec(5)
	statLine := fmt.Sprintf("  %s   %s   %s",
		styleFileSpeed.Render(ui.FormatCount(int64(eps))+" entries/s"),
		styleFileSize.Render(fmt.Sprintf("%s / %s entries",
			ui.FormatCount(snap.EntriesDone),
			ui.FormatCount(snap.FilesTotal+snap.DirsTotal))),
		styleFileSize.Render(ui.FormatCount(snap.DirsCreated)+" dirs created"),
	)
	b.WriteString(statLine)
	b.WriteString("\n\n")

	counts := fmt.Sprintf("  %s %s   %s %s",
		styleIconSkipped.Render("skipped"), ui.FormatCount(snap.EntriesSkipped),
		styleIconFailed.Render("failed"), ui.FormatCount(snap.EntriesFailed),
	)
	if snap.Verified > 0 {
		counts += fmt.Sprintf("   %s %s", styleIconDone.Render("verified"), ui.FormatCount(snap.Verified))
	}
	b.WriteString(counts)
	b.WriteByte('\n')

	return b.String()
}
