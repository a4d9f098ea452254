package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/fsys"
	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/statistics"
	"github.com/bamsammich/ferry/internal/ui"
)

func sizeCmd(g *globals) *cobra.Command {
	var singleDepth, deep bool
	cmd := &cobra.Command{
		Use:   "size PATH...",
		Short: "Measure total size, file and directory counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var observers []event.Observer
			if fileLog != nil {
				observers = append(observers, ui.EventLog(fileLog))
			}
			isTTY := ui.IsTTY(os.Stderr.Fd())
			if isTTY && !g.quiet {
				observers = append(observers, event.ObserverFunc(func(e event.Event) {
					if e.Type == event.DataNotify {
						fmt.Fprintf(os.Stderr, "\r\033[2K%s  %s files  %s dirs",
							ui.FormatBytes(e.Size), ui.FormatCount(e.Files), ui.FormatCount(e.Dirs))
					}
				}))
			}
			events := event.NewDispatcher(observers...)

			j := statistics.New(fsys.NewLocal(),
				statistics.WithEvents(events),
				statistics.WithSettings(settings),
				statistics.WithFilter(chain),
				statistics.WithLogger(logger),
			)
			hints := settings.Flags()
			if singleDepth {
				hints |= job.SingleDepth
			}
			if deep {
				hints |= job.DeepCount
			}
			if err := j.SetFileHints(hints); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			stopToggle := pauseOnSignal(ctx, j.TogglePause)
			defer stopToggle()

			info, err := j.Run(ctx, args)
			events.Close()
			if isTTY && !g.quiet {
				fmt.Fprint(os.Stderr, "\r\033[2K")
			}
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				fmt.Fprintln(os.Stderr, "interrupted, partial counts:")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\t%d files\t%d dirs\n",
				ui.FormatBytes(info.TotalSize), info.TotalSize,
				info.FileCount, j.DirectoriesCount(len(args) != 1))
			if ctx.Err() != nil {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&singleDepth, "single-depth", false, "count only the direct children of each path")
	cmd.Flags().BoolVar(&deep, "deep", false, "with --single-depth, still count files of the whole tree")
	return cmd
}
