package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
	"github.com/bamsammich/ferry/internal/ui"
)

// Config configures the TUI presenter.
type Config struct {
	Stats   stats.ReadTicker
	Control Controller
	Title   string
	Root    string
	Theme   config.ThemeConfig
}

// Presenter wraps a Bubble Tea program and implements ui.Presenter. It also
// answers decision requests, so the engine needs no Responder alongside it.
type Presenter struct {
	cfg   Config
	model Model
}

func NewPresenter(cfg Config) *Presenter {
	ApplyTheme(cfg.Theme)
	return &Presenter{cfg: cfg}
}

// Run starts the Bubble Tea program and blocks until the user leaves. Events
// still queued at that point are drained so the sender never blocks.
func (p *Presenter) Run(events <-chan event.Event) error {
	defer func() {
		for range events {
		}
	}()

	p.model = NewModel(events, p.cfg.Stats, p.cfg.Control, p.cfg.Title, p.cfg.Root)
	prog := tea.NewProgram(
		p.model,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	finalModel, err := prog.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(Model); ok {
		p.model = m
	}
	return nil
}

// Summary returns the final completion summary line.
func (p *Presenter) Summary() string {
	return ui.CompletionSummary(p.cfg.Stats.Snapshot())
}
