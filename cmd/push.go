package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/andresmejia3/faceindex/internal/utils"
	"github.com/spf13/cobra"
)

var pushLabel string

var pushCmd = &cobra.Command{
	Use:   "push <index_file>",
	Short: "Copy an index file into PostgreSQL",
	Long:  "Stores every record of an index file in the database. Pushing the same file again replaces its records.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ctx := cmd.Context()
		path := args[0]

		idx, err := faceindex.Load(path)
		if err != nil {
			return report("Failed to load index", err, nil)
		}

		// Generate Source ID so re-pushes of an unchanged file are idempotent
		sourceID, err := utils.GenerateFileID(path)
		if err != nil {
			return report("Failed to fingerprint index file", err, nil)
		}

		label := pushLabel
		if label == "" {
			label = filepath.Base(path)
		}

		db, err := openStore(ctx)
		if err != nil {
			return report("Failed to connect to database", err, nil)
		}
		id, err := db.SaveIndex(ctx, sourceID, label, idx)
		if err != nil {
			return report("Failed to store index", err, nil)
		}

		fmt.Fprintf(os.Stderr, "🗄️  Stored %d faces as index %d (source %s)\n", idx.Len(), id, sourceID[:12])
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	pushCmd.Flags().StringVarP(&pushLabel, "label", "l", "", "Label for the stored index (default: file name)")
	rootCmd.AddCommand(pushCmd)
}
