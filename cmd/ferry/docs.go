package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

func docsCmd() *cobra.Command {
	var dir, format string
	cmd := &cobra.Command{
		Use:    "gen-docs",
		Short:  "Write ferry's command reference",
		Hidden: true,
		Long: `Writes documentation for every ferry command: size, copy, move, remove,
history and clean. Formats are "man" (one page per command), "markdown"
(one file per command) and "reference" (a single ferry.md holding all of them).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeDocs(cmd.Root(), dir, format)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "docs", "output directory")
	cmd.Flags().StringVar(&format, "format", "man", "man, markdown or reference")
	return cmd
}

func writeDocs(root *cobra.Command, dir, format string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	root.DisableAutoGenTag = true
	switch format {
	case "man":
		return doc.GenManTree(root, &doc.GenManHeader{
			Title:   "FERRY",
			Section: "1",
			Manual:  "Ferry Manual",
			Source:  "ferry " + version,
		}, dir)
	case "markdown":
		return doc.GenMarkdownTree(root, dir)
	case "reference":
		return writeReference(root, filepath.Join(dir, "ferry.md"))
	default:
		return fmt.Errorf("unknown docs format %q", format)
	}
}

// writeReference concatenates the visible commands into one page, with
// cross links rewritten to in-page anchors.
func writeReference(root *cobra.Command, path string) error {
	var buf bytes.Buffer
	anchor := func(name string) string {
		return "#" + strings.ReplaceAll(strings.TrimSuffix(name, ".md"), "_", "-")
	}
	cmds := append([]*cobra.Command{root}, root.Commands()...)
	for _, c := range cmds {
		if c != root && (!c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand()) {
			continue
		}
		if err := doc.GenMarkdownCustom(c, &buf, anchor); err != nil {
			return fmt.Errorf("document %s: %w", c.CommandPath(), err)
		}
		buf.WriteString("\n")
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
