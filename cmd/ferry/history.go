package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ferry/internal/journal"
	"github.com/bamsammich/ferry/internal/ui"
)

func journalDefault() string { return journal.Path() }

// openJournal returns nil when journaling is off.
func (g *globals) openJournal() (*journal.Journal, error) {
	if g.noJournal {
		return nil, nil //nolint:nilnil // journaling disabled
	}
	path := g.journalPath
	if path == "" {
		path = journal.Path()
	}
	return journal.Open(path)
}

func historyCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := g.openJournal()
			if err != nil {
				return err
			}
			if j == nil {
				return fmt.Errorf("journal disabled")
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(w, "%s  %-7s %-9s %s entries  %s  %s\n",
					e.Started.Local().Format(time.DateTime),
					e.Kind, e.Outcome,
					ui.FormatCount(e.Entries), ui.FormatBytes(e.Bytes),
					strings.Join(e.Sources, " "))
				if e.Error != "" {
					fmt.Fprintf(w, "    %s\n", firstLine(e.Error))
				}
				for _, p := range e.Incomplete {
					fmt.Fprintf(w, "    incomplete: %s\n", p)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func cleanCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete partial files left behind by interrupted runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := g.openJournal()
			if err != nil {
				return err
			}
			if j == nil {
				return fmt.Errorf("journal disabled")
			}
			defer j.Close()

			removed, err := j.Clean(cmd.Context())
			for _, p := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if err != nil {
				return err
			}
			if len(removed) == 0 && !g.quiet {
				fmt.Fprintln(os.Stderr, "nothing to clean")
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
