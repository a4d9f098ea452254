package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiBold  = "\033[1m"
	ansiReset = "\033[0m"
)

// hudPresenter provides a rich TTY display with a scrolling feed of finished
// entries and a 2-line HUD that redraws in place.
type hudPresenter struct {
	w         io.Writer
	stats     stats.ReadTicker
	forceFeed bool
	forceRate bool
	root      string // stripped from displayed paths
	width     int

	// Internal state.
	hudDrawn     bool
	hudLineCount int // lines in the last HUD draw
	rateMode     bool
	rateSwitched bool // whether the switch notice was printed
	prompting    int  // open decision requests; the HUD stays down meanwhile
	state        job.State
	current      string
	lastHUDDraw  time.Time
}

const (
	rateThreshHigh   = 200.0
	rateThreshLow    = 100.0
	sparklineWidth   = 20
	progressBarWidth = 20
	hudMinInterval   = 50 * time.Millisecond
)

func (p *hudPresenter) Run(events <-chan Event) error {
	if p.forceRate {
		p.rateMode = true
	}

	// First tick comes quickly to seed the ring buffer, then every second.
	secTicker := time.NewTicker(250 * time.Millisecond)
	defer secTicker.Stop()
	firstTickDone := false

	// Redraw when no events are flowing, e.g. during a large file.
	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.maybeSwitch()
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
			if !firstTickDone {
				firstTickDone = true
				secTicker.Reset(time.Second)
			}
		}
	}
}

func (p *hudPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case EntryStarted:
		p.current = shownPath(p.root, ev)

	case EntryFinished:
		if !p.rateMode {
			p.feedLine(func() { p.printFinished(ev) })
		}

	case EntryFailed:
		// Failures show even in rate view.
		p.feedLine(func() { p.printFailed(ev) })

	case EntrySkipped:
		if !p.rateMode {
			p.feedLine(func() {
				fmt.Fprintf(p.w, "–  %s  %sskipped%s\n", p.styledPath(shownPath(p.root, ev)), ansiDim, ansiReset)
			})
		}

	case DecisionRequested:
		p.prompting++
		p.clearHUD()

	case DecisionResolved:
		if p.prompting > 0 {
			p.prompting--
		}

	case StateChanged:
		p.state = ev.State
	}
}

// feedLine prints above the HUD and redraws it.
func (p *hudPresenter) feedLine(print func()) {
	p.clearHUD()
	print()
	p.drawHUD()
}

func (p *hudPresenter) printFinished(ev Event) {
	path := p.styledPath(shownPath(p.root, ev))
	if ev.Size <= 0 {
		fmt.Fprintf(p.w, "✓  %s\n", path)
		return
	}
	if speed := p.stats.RollingSpeed(5); speed > 0 {
		fmt.Fprintf(p.w, "✓  %s  %10s  %s\n", path, FormatBytes(ev.Size), FormatRate(speed))
		return
	}
	fmt.Fprintf(p.w, "✓  %s  %10s\n", path, FormatBytes(ev.Size))
}

func (p *hudPresenter) printFailed(ev Event) {
	errMsg := "error"
	if ev.Error != nil {
		errMsg = ev.Error.Error()
	}
	fmt.Fprintf(p.w, "✗  %s  %s\n", p.styledPath(shownPath(p.root, ev)), errMsg)
}

func (p *hudPresenter) maybeSwitch() {
	if p.forceFeed || p.forceRate {
		return
	}

	eps := p.stats.RollingEntriesPerSec(2)

	if !p.rateMode && eps > rateThreshHigh {
		p.rateMode = true
		if !p.rateSwitched {
			p.rateSwitched = true
			p.clearHUD()
			fmt.Fprintf(p.w, "↯ rate view (%s entries/s · use --feed to see individual entries)\n",
				FormatCount(int64(eps)))
		}
	} else if p.rateMode && eps < rateThreshLow {
		p.rateMode = false
	}
}

func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	if p.prompting > 0 {
		return
	}
	snap := p.stats.Snapshot()
	p.clearHUD()

	pct := Percent(snap.ProgressDone, snap.ProgressTotal)
	speed := p.stats.RollingSpeed(10)
	spark := Sparkline(p.stats.SparklineData(sparklineWidth), sparklineWidth)
	lines := 0

	if p.rateMode {
		eps := p.stats.RollingEntriesPerSec(5)
		fmt.Fprintf(p.w, "entries/s  %s  %s/s   %s / %s done\n",
			spark, FormatCount(int64(eps)),
			FormatCount(snap.EntriesDone), FormatCount(snap.FilesTotal+snap.DirsTotal))
		lines++
	}

	// Line 1: throughput sparkline, speed, bytes written and current entry.
	fmt.Fprintf(p.w, "       %s   %s   %s  %s%s%s\n",
		spark, FormatRate(speed), FormatBytes(snap.BytesWritten),
		ansiDim, truncPath(p.current, max(p.width-56, 16)), ansiReset)
	lines++

	// Line 2: progress bar, entries, eta or paused marker.
	tail := "eta " + FormatETA(p.stats.ETA())
	if p.state == job.Paused {
		tail = ansiBold + "paused" + ansiReset
	}
	fmt.Fprintf(p.w, " %3.0f%%  %s   %s / %s entries   %s\n",
		pct*100, ProgressBar(pct, progressBarWidth),
		FormatCount(snap.EntriesDone), FormatCount(snap.FilesTotal+snap.DirsTotal),
		tail)
	lines++

	p.hudDrawn = true
	p.hudLineCount = lines
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	lines := p.hudLineCount
	if lines == 0 {
		lines = 2
	}
	// Move cursor up N lines and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", lines)
	p.hudDrawn = false
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}

// styledPath dims the directory part so the name stands out.
func (p *hudPresenter) styledPath(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "." || dir == "" {
		return base
	}
	return fmt.Sprintf("%s%s/%s%s", ansiDim, dir, ansiReset, base)
}

// truncPath shortens a path to fit within maxLen characters.
func truncPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-maxLen+3:]
}

// StripRoot removes a root prefix from a path, returning a clean relative path.
func StripRoot(root, path string) string {
	if root == "" {
		return path
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	if strings.HasPrefix(path, root) {
		return path[len(root):]
	}
	return path
}
