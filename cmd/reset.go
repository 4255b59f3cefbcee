package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	resetDB    bool
	resetFiles bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (Database, Index Files)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetFiles {
			resetDB = true
			resetFiles = true
		}

		reader := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		if resetDB {
			if confirm(reader, out, "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Fprintln(out, "🗑️  Clearing Database...")
				db, err := openStore(cmd.Context())
				if err != nil {
					return report("Failed to connect to database", err, nil)
				}
				if err := db.Reset(cmd.Context()); err != nil {
					return report("Failed to reset database", err, nil)
				}
			}
		}

		if resetFiles {
			dir := cfg.Index.OutputDir
			if confirm(reader, out, fmt.Sprintf("⚠️  Are you sure you want to delete all index files (%s) in %s?", indexFilePattern, dir)) {
				fmt.Fprintln(out, "🗑️  Clearing Index Files...")
				removed, err := removeIndexFiles(dir)
				if err != nil {
					fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
				}
				fmt.Fprintf(out, "   Removed %d index files\n", removed)
			}
		}

		fmt.Fprintln(out, "✨ System Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "database", false, "Clear PostgreSQL database")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Clear generated index files")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

// indexFilePattern matches the files the index command names by default.
const indexFilePattern = "*-faces-*.gob"

// removeIndexFiles deletes generated index files directly inside dir and
// leaves everything else, including dir itself, in place.
func removeIndexFiles(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, indexFilePattern))
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, m := range matches {
		info, err := os.Lstat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := os.Remove(m); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", m, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
