package ui

import (
	"cmp"
	"io"

	"github.com/bamsammich/ferry/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      stats.ReadTicker
	Root       string // stripped from displayed paths
	Width      int    // terminal columns, 0 = default
	IsTTY      bool
	Quiet      bool
	ForceFeed  bool
	ForceRate  bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{stats: cfg.Stats}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return &plainPresenter{
			w:     cfg.Writer,
			errW:  cfg.ErrWriter,
			stats: cfg.Stats,
			root:  cfg.Root,
		}
	}
	return &hudPresenter{
		w:         cfg.ErrWriter, // HUD renders to stderr (the TTY)
		stats:     cfg.Stats,
		forceFeed: cfg.ForceFeed,
		forceRate: cfg.ForceRate,
		root:      cfg.Root,
		width:     cmp.Or(cfg.Width, defaultWidth),
	}
}

// shownPath picks the path an entry event is displayed by: the destination
// when there is one, relative to root.
func shownPath(root string, ev Event) string {
	if ev.Dest != "" {
		return StripRoot(root, ev.Dest)
	}
	return StripRoot(root, ev.Path)
}
