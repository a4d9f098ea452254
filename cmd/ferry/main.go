package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/job"
	"github.com/bamsammich/ferry/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

// globals holds the flags shared by every subcommand.
type globals struct {
	chain       *filter.Chain
	filterFile  string
	minSizeStr  string
	maxSizeStr  string
	logFile     string
	journalPath string
	bwLimitStr  string
	chunkStr    string
	onConflict  string
	onError     string
	verbose     bool
	quiet       bool
	noJournal   bool
	skipHidden  bool
	noFollow    bool
	verify      bool
	tui         bool
	forceFeed   bool
	forceRate   bool
	noProgress  bool

	cfg config.Config
}

func run() int {
	g := &globals{chain: filter.NewChain()}

	rootCmd := &cobra.Command{
		Use:           "ferry",
		Short:         "Copy, move and delete file trees with progress, pause and conflict prompts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			g.cfg = cfg
			if !cmd.Flags().Changed("tui") && cfg.Defaults.TUI != nil {
				g.tui = *cfg.Defaults.TUI
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&g.logFile, "log", "", "write structured JSON log to FILE")
	pf.BoolVar(&g.skipHidden, "skip-hidden", false, "ignore dot-named entries below the sources")
	pf.BoolVar(&g.noFollow, "no-follow", false, "never follow symlinks while measuring")
	pf.VarP(&filterFlag{chain: g.chain}, "exclude", "", "exclude entries matching PATTERN (repeatable)")
	pf.VarP(&filterFlag{chain: g.chain, include: true}, "include", "", "include entries matching PATTERN (repeatable)")
	pf.StringVar(&g.filterFile, "filter", "", "read filter rules from FILE")
	pf.StringVar(&g.minSizeStr, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	pf.StringVar(&g.maxSizeStr, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")
	pf.StringVar(&g.journalPath, "journal", "", "run journal database (default: "+journalDefault()+")")
	pf.BoolVar(&g.noJournal, "no-journal", false, "do not record runs")

	rootCmd.AddCommand(
		sizeCmd(g),
		transferCmd(g, job.Copy),
		transferCmd(g, job.Cut),
		removeCmd(g),
		historyCmd(g),
		cleanCmd(g),
		docsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// addOperationFlags registers the flags of commands that run an operation.
func (g *globals) addOperationFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&g.tui, "tui", false, "full-screen TUI (Bubble Tea)")
	fs.BoolVar(&g.forceFeed, "feed", false, "force feed mode (one line per entry)")
	fs.BoolVar(&g.forceRate, "rate", false, "force rate mode (sparkline + throughput)")
	fs.BoolVar(&g.noProgress, "no-progress", false, "disable progress display")
	fs.StringVar(&g.onConflict, "on-conflict", "", "answer every collision: overwrite, rename, coexist or skip")
	fs.StringVar(&g.onError, "on-error", "", "answer every error prompt: skip")
}

// settings resolves the config file and lets explicitly set flags win.
func (g *globals) settings(cmd *cobra.Command) (config.Settings, error) {
	flags := cmd.Flags()
	d := &g.cfg.Defaults
	if flags.Changed("verify") {
		d.Verify = &g.verify
	}
	if flags.Changed("bwlimit") {
		d.BWLimit = &g.bwLimitStr
	}
	if flags.Changed("chunk-size") {
		d.ChunkSize = &g.chunkStr
	}
	if flags.Changed("skip-hidden") {
		d.SkipHidden = &g.skipHidden
	}
	if flags.Changed("no-follow") {
		follow := !g.noFollow
		d.FollowSymlinks = &follow
	}
	if flags.Changed("on-conflict") {
		g.cfg.Operation.OnConflict = &g.onConflict
	}
	if flags.Changed("on-error") {
		g.cfg.Operation.OnError = &g.onError
	}
	return g.cfg.Settings()
}

// filter builds the include/exclude chain, or nil when no rule was given.
func (g *globals) filter() (*filter.Chain, error) {
	if g.filterFile != "" {
		if err := g.chain.LoadFile(g.filterFile); err != nil {
			return nil, fmt.Errorf("load filter file: %w", err)
		}
	}
	if g.minSizeStr != "" {
		n, err := filter.ParseSize(g.minSizeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --min-size: %w", err)
		}
		g.chain.SetMinSize(n)
	}
	if g.maxSizeStr != "" {
		n, err := filter.ParseSize(g.maxSizeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size: %w", err)
		}
		g.chain.SetMaxSize(n)
	}
	if g.chain.Empty() {
		return nil, nil //nolint:nilnil // no rules means no filter
	}
	return g.chain, nil
}

// logger configures slog: text on stderr at warn/info/debug by -q/default/-v,
// plus JSON at debug when --log is set. The second logger writes only to the
// --log file and is nil without one; event records go there.
func (g *globals) logger() (*slog.Logger, *slog.Logger, io.Closer, error) {
	logLevel := slog.LevelWarn
	if g.verbose {
		logLevel = slog.LevelDebug
	} else if !g.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	if g.logFile == "" {
		logger := slog.New(textHandler)
		slog.SetDefault(logger)
		return logger, nil, io.NopCloser(nil), nil
	}

	lf, err := os.Create(g.logFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open log file: %w", err)
	}
	jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(ui.NewMultiHandler(textHandler, jsonHandler))
	slog.SetDefault(logger)
	return logger, slog.New(jsonHandler), lf, nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
