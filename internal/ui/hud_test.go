package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/stats"
)

func newHUD(out *bytes.Buffer, root string) *hudPresenter {
	collector := stats.NewCollector()
	collector.SetTotals(10, 0, 10240)
	return &hudPresenter{w: out, stats: collector, forceFeed: true, root: root}
}

func feed(t *testing.T, p *hudPresenter, evs ...Event) {
	t.Helper()
	events := make(chan Event, len(evs))
	for _, ev := range evs {
		events <- ev
	}
	close(events)
	require.NoError(t, p.Run(events))
}

func TestHudPresenterEntryFinished(t *testing.T) {
	var out bytes.Buffer
	feed(t, newHUD(&out, ""), Event{Type: EntryFinished, Path: "test/file.txt", Size: 1024})

	assert.Contains(t, out.String(), "file.txt")
	assert.Contains(t, out.String(), "✓")
}

func TestHudPresenterStyledPath(t *testing.T) {
	var out bytes.Buffer
	feed(t, newHUD(&out, ""), Event{Type: EntryFinished, Path: "some/dir/file.txt", Size: 1024})

	assert.Contains(t, out.String(), ansiDim+"some/dir/"+ansiReset+"file.txt")
}

func TestHudPresenterRelativePaths(t *testing.T) {
	var out bytes.Buffer
	feed(t, newHUD(&out, "/home/user/dst"), Event{
		Type: EntryFinished,
		Path: "/home/user/src/subdir/file.txt",
		Dest: "/home/user/dst/subdir/file.txt",
		Size: 1024,
	})

	output := out.String()
	assert.NotContains(t, output, "/home/user/")
	assert.Contains(t, output, "subdir")
	assert.Contains(t, output, "file.txt")
}

func TestHudPresenterFailureShowsInRateMode(t *testing.T) {
	var out bytes.Buffer
	p := newHUD(&out, "")
	p.forceFeed, p.forceRate = false, true
	feed(t, p,
		Event{Type: EntryFinished, Path: "quiet.txt", Size: 10},
		Event{Type: EntryFailed, Path: "bad/file.txt", Error: assert.AnError},
	)

	output := out.String()
	assert.NotContains(t, output, "quiet.txt")
	assert.Contains(t, output, "✗")
	assert.Contains(t, output, assert.AnError.Error())
}

func TestHudPresenterSummary(t *testing.T) {
	collector := stats.NewCollector()
	collector.AddEntriesDone(500)
	collector.AddBytesWritten(1024 * 1024 * 100)
	collector.AddVerified(100)

	p := &hudPresenter{stats: collector}
	s := p.Summary()
	assert.Contains(t, s, "done")
	assert.Contains(t, s, "entries 500")
	assert.Contains(t, s, "verified 100")
	assert.Contains(t, s, "errors 0")
}

func TestTruncPath(t *testing.T) {
	assert.Equal(t, "short.txt", truncPath("short.txt", 20))
	assert.Equal(t, "...ry/long/path.txt", truncPath("a/very/long/directory/long/path.txt", 19))
	assert.Equal(t, "ab", truncPath("abcdef", 2))
}

func TestStyledPath(t *testing.T) {
	p := &hudPresenter{}
	assert.Equal(t, "file.txt", p.styledPath("file.txt"))
	assert.Equal(t, ansiDim+"dir/"+ansiReset+"file.txt", p.styledPath("dir/file.txt"))
}

func TestStripRoot(t *testing.T) {
	assert.Equal(t, "a/b.txt", StripRoot("/dst", "/dst/a/b.txt"))
	assert.Equal(t, "a/b.txt", StripRoot("/dst/", "/dst/a/b.txt"))
	assert.Equal(t, "/other/b.txt", StripRoot("/dst", "/other/b.txt"))
	assert.Equal(t, "/dst/x", StripRoot("", "/dst/x"))
}

func TestHudClearHUDSequence(t *testing.T) {
	var out bytes.Buffer
	p := newHUD(&out, "")
	p.drawHUD()
	assert.True(t, p.hudDrawn)
	assert.Equal(t, 2, p.hudLineCount)

	out.Reset()
	p.clearHUD()
	assert.Equal(t, "\033[2A\033[J", out.String())
	assert.False(t, p.hudDrawn)
}

func TestHudClearHUDRateMode(t *testing.T) {
	var out bytes.Buffer
	p := newHUD(&out, "")
	p.rateMode = true
	p.drawHUD()
	assert.Equal(t, 3, p.hudLineCount)
}

func TestHudStaysDownWhilePrompting(t *testing.T) {
	var out bytes.Buffer
	p := newHUD(&out, "")
	p.drawHUD()

	p.handleEvent(Event{Type: DecisionRequested, Request: &job.Request{ID: "1"}})
	assert.False(t, p.hudDrawn)
	out.Reset()
	p.drawHUD()
	assert.Empty(t, out.String())

	p.handleEvent(Event{Type: DecisionResolved})
	p.drawHUD()
	assert.True(t, p.hudDrawn)
}

func TestHudShowsPaused(t *testing.T) {
	var out bytes.Buffer
	p := newHUD(&out, "")
	p.handleEvent(Event{Type: StateChanged, State: job.Paused})
	p.drawHUD()
	assert.Contains(t, out.String(), "paused")
	assert.NotContains(t, out.String(), "eta")
}
