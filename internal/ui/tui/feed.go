package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/ui"
)

type inFlightEntry struct {
	path     string
	started  time.Time
	size     int64
	progress int64 // bytes written so far
}

type completedEntry struct {
	path    string
	errMsg  string
	size    int64
	skipped bool
	failed  bool
}

type errorEntry struct {
	time time.Time
	path string
	err  string
}

type feedView struct {
	inFlight     *inFlightEntry   // the worker handles one entry at a time
	completed    []completedEntry // unbounded history
	errors       []errorEntry     // never evicted
	root         string
	scrollOffset int  // viewport offset into completed list
	autoScroll   bool // follow new entries
}

func newFeedView(root string) feedView {
	return feedView{
		root:       root,
		autoScroll: true,
	}
}

// entryPath is the path an entry is listed under: its destination when it
// has one.
func entryPath(ev event.Event) string {
	if ev.Dest != "" {
		return ev.Dest
	}
	return ev.Path
}

func (f *feedView) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.EntryStarted:
		f.inFlight = &inFlightEntry{
			path:    entryPath(ev),
			size:    ev.Size,
			started: ev.Timestamp,
		}

	case event.EntryProgress:
		if f.inFlight != nil && f.inFlight.path == entryPath(ev) {
			f.inFlight.progress = ev.Size
		}

	case event.EntryFinished:
		f.settle(ev)
		f.addCompleted(completedEntry{
			path: entryPath(ev),
			size: ev.Size,
		})

	case event.EntryFailed:
		f.settle(ev)
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		f.addCompleted(completedEntry{
			path:   entryPath(ev),
			failed: true,
			errMsg: errMsg,
		})
		f.errors = append(f.errors, errorEntry{
			path: entryPath(ev),
			err:  errMsg,
			time: ev.Timestamp,
		})

	case event.EntrySkipped:
		f.settle(ev)
		f.addCompleted(completedEntry{
			path:    entryPath(ev),
			skipped: true,
		})
	}
}

func (f *feedView) settle(ev event.Event) {
	if f.inFlight != nil && f.inFlight.path == entryPath(ev) {
		f.inFlight = nil
	}
}

func (f *feedView) addCompleted(e completedEntry) {
	// view() pins the viewport to the bottom while autoScroll is on.
	f.completed = append(f.completed, e)
}

// scrollDown moves the viewport down one line and disables autoScroll.
func (f *feedView) scrollDown() {
	f.autoScroll = false
	f.scrollOffset++
}

// scrollUp moves the viewport up one line and disables autoScroll.
func (f *feedView) scrollUp() {
	f.autoScroll = false
	if f.scrollOffset > 0 {
		f.scrollOffset--
	}
}

// scrollToTop jumps to the first completed entry.
func (f *feedView) scrollToTop() {
	f.autoScroll = false
	f.scrollOffset = 0
}

// scrollToBottom jumps to the most recent completed entry and re-enables autoScroll.
func (f *feedView) scrollToBottom() {
	f.autoScroll = true
}

// view renders up to height lines: one divider per visible section, errors
// capped at 5 lines and completed entries filling the rest.
func (f *feedView) view(height int, speed float64) string {
	inFlightCount := 0
	if f.inFlight != nil {
		inFlightCount = 1
	}

	errCount := min(len(f.errors), 5)

	// Calculate divider lines needed.
	dividers := 0
	if inFlightCount > 0 {
		dividers++
	}
	if errCount > 0 {
		dividers++
	}
	if len(f.completed) > 0 {
		dividers++
	}

	completedHeight := height - inFlightCount - errCount - dividers
	if completedHeight < 1 {
		completedHeight = 1
	}

	// Clamp scroll offset.
	maxOffset := len(f.completed) - completedHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	if f.autoScroll {
		f.scrollOffset = maxOffset
	}
	if f.scrollOffset > maxOffset {
		f.scrollOffset = maxOffset
	}
	if f.scrollOffset < 0 {
		f.scrollOffset = 0
	}

	var b strings.Builder

	// Section 1: In-flight.
	inFlightLines := f.renderInFlight()
	if inFlightLines != "" {
		b.WriteString(styleDivider.Render("─ in-flight"))
		b.WriteByte('\n')
		b.WriteString(inFlightLines)
	}

	// Section 2: Completed (scrollable viewport).
	completedLines := f.renderCompletedViewport(completedHeight, speed)
	if completedLines != "" {
		label := fmt.Sprintf("─ completed (%d)", len(f.completed))
		b.WriteString(styleDivider.Render(label))
		b.WriteByte('\n')
		b.WriteString(completedLines)
	}

	// Section 3: Errors (pinned at bottom).
	errorLines := f.renderErrors(errCount)
	if errorLines != "" {
		label := fmt.Sprintf("─ errors (%d)", len(f.errors))
		b.WriteString(styleDivider.Render(label))
		b.WriteByte('\n')
		b.WriteString(errorLines)
	}

	return b.String()
}

func (f *feedView) renderInFlight() string {
	e := f.inFlight
	if e == nil {
		return ""
	}
	line := fmt.Sprintf("  %s  %s",
		styleInFlight.Render("⟩"),
		f.styledPath(e.path),
	)
	if e.size > 0 {
		line += fmt.Sprintf("  %s  %s",
			styleFileSize.Render(ui.FormatBytes(e.progress)+" / "+ui.FormatBytes(e.size)),
			renderMiniBar(ui.Percent(e.progress, e.size)),
		)
	}
	return line + "\n"
}

func (f *feedView) renderCompletedViewport(viewportHeight int, speed float64) string {
	if len(f.completed) == 0 {
		return ""
	}

	var b strings.Builder
	end := f.scrollOffset + viewportHeight
	if end > len(f.completed) {
		end = len(f.completed)
	}
	start := f.scrollOffset
	if start < 0 {
		start = 0
	}

	for _, e := range f.completed[start:end] {
		var icon, extra string
		path := f.styledPath(e.path)
		sizeStr := ""
		if e.size > 0 {
			sizeStr = styleFileSize.Render(fmt.Sprintf("%10s", ui.FormatBytes(e.size)))
		}

		switch {
		case e.failed:
			icon = styleIconFailed.Render("✗")
			extra = styleError.Render(e.errMsg)
		case e.skipped:
			icon = styleIconSkipped.Render("–")
			extra = styleIconSkipped.Render("skipped")
		default:
			icon = styleIconDone.Render("✓")
			if speed > 0 {
				extra = styleFileSpeed.Render(ui.FormatRate(speed))
			}
		}

		line := fmt.Sprintf("  %s  %s", icon, path)
		if sizeStr != "" {
			line += "  " + sizeStr
		}
		if extra != "" {
			line += "  " + extra
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) renderErrors(maxLines int) string {
	if len(f.errors) == 0 {
		return ""
	}

	var b strings.Builder
	// Show the most recent errors (tail).
	start := len(f.errors) - maxLines
	if start < 0 {
		start = 0
	}
	for _, e := range f.errors[start:] {
		path := styleErrorPath.Render(ui.StripRoot(f.root, e.path))
		errMsg := styleError.Render(e.err)
		line := fmt.Sprintf("  %s  %s  %s", styleIconFailed.Render("✗"), path, errMsg)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) styledPath(path string) string {
	path = ui.StripRoot(f.root, path)
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "." || dir == "" {
		return styleFilePath.Render(base)
	}
	return styleFileDir.Render(dir+"/") + styleFilePath.Render(base)
}

// renderMiniBar renders a 2-rune progress indicator.
func renderMiniBar(pct float64) string {
	if pct <= 0 {
		return styleProgressEmpty.Render("□□")
	}
	if pct >= 1 {
		return styleProgressFilled.Render("▪▪")
	}
	if pct < 0.5 {
		return styleProgressFilled.Render("▪") + styleProgressEmpty.Render("□")
	}
	return styleProgressFilled.Render("▪▪")
}
