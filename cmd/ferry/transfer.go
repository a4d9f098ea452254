package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/bamsammich/ferry/internal/engine"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/ui"
	"github.com/bamsammich/ferry/internal/ui/tui"
)

func transferCmd(g *globals, kind job.Kind) *cobra.Command {
	var copyTargets bool
	use, short := "cp SOURCE... DEST", "Copy files and directories into DEST"
	if kind == job.Cut {
		use, short = "mv SOURCE... DEST", "Move files and directories into DEST"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var flags job.Flags
			if copyTargets {
				flags |= job.CopyLinkTargets
			}
			dest := args[len(args)-1]
			return g.runOperation(cmd, kind, args[:len(args)-1], dest, flags)
		},
	}
	fs := cmd.Flags()
	g.addOperationFlags(fs)
	fs.BoolVar(&g.verify, "verify", false, "re-read every written file and compare BLAKE3 digests")
	fs.StringVar(&g.bwLimitStr, "bwlimit", "", "limit bandwidth (e.g. 100M, 1G per second)")
	fs.StringVar(&g.chunkStr, "chunk-size", "", "copy buffer size (default 1M)")
	if kind == job.Copy {
		fs.BoolVarP(&copyTargets, "dereference", "L", false, "copy what symlinks point to instead of the links")
	}
	return cmd
}

func removeCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Delete files and directory trees",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.runOperation(cmd, job.Delete, args, "", 0)
		},
	}
	g.addOperationFlags(cmd.Flags())
	return cmd
}

func (g *globals) runOperation(cmd *cobra.Command, kind job.Kind, sources []string, dest string, flags job.Flags) error {
	logger, fileLog, logCloser, err := g.logger()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	settings, err := g.settings(cmd)
	if err != nil {
		return err
	}
	chain, err := g.filter()
	if err != nil {
		return err
	}
	plan, err := job.NewPlan(kind, sources, dest, flags|settings.Flags())
	if err != nil {
		return err
	}

	jrnl, err := g.openJournal()
	if err != nil {
		logger.Warn("journal unavailable, run will not be recorded", "error", err)
	}
	if jrnl != nil {
		defer jrnl.Close()
	}

	isTTY := ui.IsTTY(os.Stderr.Fd())
	useTUI := g.tui && ui.Interactive(os.Stdin, os.Stderr) && !g.quiet

	events := make(chan event.Event, 256)
	observers := []event.Observer{event.Channel(events)}
	if fileLog != nil {
		observers = append(observers, ui.EventLog(fileLog))
	}

	opts := engine.Options{
		FS:        fsys.NewLocal(),
		Filter:    chain,
		Journal:   jrnl,
		Logger:    logger,
		Observers: observers,
		Settings:  settings,
	}
	if !useTUI {
		opts.Responder = g.responder(isTTY)
	}
	h := engine.NewHandle(opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := h.Start(ctx, plan); err != nil {
		h.Close()
		return err
	}
	stopToggle := pauseOnSignal(ctx, func() {
		logger.Info("pause toggled", "state", h.TogglePause().String())
	})
	defer stopToggle()

	var presenter ui.Presenter
	if useTUI {
		presenter = tui.NewPresenter(tui.Config{
			Stats:   h.Stats(),
			Control: h,
			Title:   kind.String(),
			Root:    dest,
			Theme:   g.cfg.Theme,
		})
	} else {
		presenter = ui.NewPresenter(ui.Config{
			Writer:     os.Stdout,
			ErrWriter:  os.Stderr,
			Stats:      h.Stats(),
			Root:       dest,
			IsTTY:      isTTY,
			Width:      ui.TermWidth(os.Stderr.Fd()),
			Quiet:      g.quiet,
			ForceFeed:  g.forceFeed,
			ForceRate:  g.forceRate,
			NoProgress: g.noProgress,
		})
	}

	var sum engine.Summary
	var grp errgroup.Group
	grp.Go(func() error {
		err := presenter.Run(events)
		if err != nil {
			h.Cancel()
		}
		return err
	})
	grp.Go(func() error {
		// The TUI may cancel and quit on its own; Wait still sees the run out.
		var werr error
		sum, werr = h.Wait(context.Background())
		h.Close()
		close(events)
		return werr
	})
	if err := grp.Wait(); err != nil {
		return err
	}

	if !g.quiet {
		fmt.Fprintln(os.Stderr, presenter.Summary())
	}
	reportIncomplete(os.Stderr, sum, jrnl != nil)
	if sum.Err != nil {
		logger.Debug("run finished with errors", "error", sum.Err)
	}
	return exitFor(sum)
}

// responder answers decision requests on the terminal, or skips them when
// nobody can be asked.
func (g *globals) responder(isTTY bool) engine.Responder {
	if isTTY && ui.Interactive(os.Stdin) {
		return ui.NewPrompter(os.Stdin, os.Stderr).Ask
	}
	return func(_ context.Context, req job.Request) job.Decision {
		if req.Allows(job.Skip) {
			return job.Skip
		}
		return job.Cancel
	}
}

// pauseOnSignal calls toggle on every SIGUSR1 until ctx ends or the returned
// function is called.
func pauseOnSignal(ctx context.Context, toggle func()) func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGUSR1)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-sig:
				toggle()
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		signal.Stop(sig)
		cancel()
	}
}

func reportIncomplete(w io.Writer, sum engine.Summary, journaled bool) {
	for _, p := range sum.Incomplete {
		fmt.Fprintf(w, "incomplete: %s\n", p)
	}
	if len(sum.Incomplete) > 0 && journaled {
		fmt.Fprintln(w, "run 'ferry clean' to remove incomplete files")
	}
}

// exitFor maps a summary to the process exit code: 0 when everything was
// done, 1 for partial or cancelled runs, 2 when nothing got done.
func exitFor(sum engine.Summary) error {
	switch {
	case sum.Outcome == job.Completed && sum.Failed == 0 && sum.Err == nil:
		return nil
	case sum.Outcome == job.Failed && sum.Entries == 0:
		return &exitError{code: 2}
	default:
		return &exitError{code: 1}
	}
}
