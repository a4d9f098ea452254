package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/stats"
)

// plainPresenter outputs one line per finished entry to stdout, and periodic
// progress to stderr when not a TTY.
type plainPresenter struct {
	w     io.Writer
	errW  io.Writer
	stats stats.ReadTicker
	root  string
	state job.State
}

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-secTicker.C:
			p.stats.Tick()
		case <-ticker.C:
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	path := shownPath(p.root, ev)
	switch ev.Type {
	case EntryFinished:
		if ev.Size > 0 {
			fmt.Fprintf(p.w, "%s  %s\n", path, FormatBytes(ev.Size))
		} else {
			fmt.Fprintln(p.w, path)
		}
	case EntryFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s\n", path, errMsg)
	case EntrySkipped:
		if ev.Error != nil {
			fmt.Fprintf(p.w, "%s  skipped (%v)\n", path, ev.Error)
		} else {
			fmt.Fprintf(p.w, "%s  skipped\n", path)
		}
	case StateChanged:
		switch {
		case ev.State == job.Paused:
			fmt.Fprintln(p.errW, "paused")
		case ev.State == job.Running && p.state == job.Paused:
			fmt.Fprintln(p.errW, "resumed")
		}
		p.state = ev.State
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.ProgressTotal > 0 {
		speed := p.stats.RollingSpeed(10)
		eta := p.stats.ETA()
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s entries %s eta %s\n",
			Percent(snap.ProgressDone, snap.ProgressTotal)*100,
			FormatCount(snap.EntriesDone), FormatCount(snap.FilesTotal+snap.DirsTotal),
			FormatRate(speed),
			FormatETA(eta),
		)
		return
	}
	fmt.Fprintf(p.errW, "progress: %s written %s entries\n",
		FormatBytes(snap.BytesWritten),
		FormatCount(snap.EntriesDone),
	)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
