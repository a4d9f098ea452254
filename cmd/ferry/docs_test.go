package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docsRoot() *cobra.Command {
	root := &cobra.Command{Use: "ferry", Short: "file trees"}
	noop := func(*cobra.Command, []string) {}
	root.AddCommand(
		&cobra.Command{Use: "size PATH...", Short: "measure trees", Run: noop},
		&cobra.Command{Use: "copy SRC... DST", Short: "copy trees", Run: noop},
		docsCmd(),
	)
	return root
}

func TestWriteDocs_Man(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeDocs(docsRoot(), dir, "man"))

	page, err := os.ReadFile(filepath.Join(dir, "ferry-copy.1"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Ferry Manual")
	assert.NoFileExists(t, filepath.Join(dir, "ferry-gen-docs.1"))
}

func TestWriteDocs_Reference(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeDocs(docsRoot(), dir, "reference"))

	page, err := os.ReadFile(filepath.Join(dir, "ferry.md"))
	require.NoError(t, err)
	text := string(page)
	assert.Contains(t, text, "## ferry size")
	assert.Contains(t, text, "## ferry copy")
	assert.Contains(t, text, "(#ferry-size)")
	assert.NotContains(t, text, "gen-docs")
	assert.NotContains(t, text, ".md)")
}

func TestWriteDocs_UnknownFormat(t *testing.T) {
	assert.ErrorContains(t, writeDocs(docsRoot(), t.TempDir(), "pdf"), "pdf")
}
