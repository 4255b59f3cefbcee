package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/andresmejia3/faceindex/internal/store"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [index_file]",
	Short: "List the faces in an index file, or the indexes stored in the database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if len(args) == 1 {
			idx, err := faceindex.Load(args[0])
			if err != nil {
				return report("Failed to load index", err, nil)
			}
			return printIndex(cmd.OutOrStdout(), idx)
		}
		return runListStored(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

// printIndex lists records grouped by source image.
func printIndex(out io.Writer, idx *faceindex.Index) error {
	if idx.Len() == 0 {
		fmt.Fprintln(out, "Index is empty.")
		return nil
	}

	groups := faceindex.GroupByImage(idx)
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tNAME\tBOX (T,R,B,L)")
	fmt.Fprintln(w, "-----\t----\t-------------")
	for _, path := range groups.Paths() {
		for _, rec := range groups[path] {
			l := rec.Location
			fmt.Fprintf(w, "%s\t%s\t%d,%d,%d,%d\n", filepath.Base(path), rec.Name, l.Top, l.Right, l.Bottom, l.Left)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d faces in %d images, %d dimensions\n", idx.Len(), len(groups), idx.Dim())
	return nil
}

func runListStored(ctx context.Context, out io.Writer) error {
	db, err := openStore(ctx)
	if err != nil {
		return report("Failed to connect to database", err, nil)
	}
	infos, err := db.ListIndexes(ctx)
	if err != nil {
		return report("Failed to list indexes", err, nil)
	}
	return printStored(out, infos)
}

func printStored(out io.Writer, infos []store.IndexInfo) error {
	if len(infos) == 0 {
		fmt.Fprintln(out, "No indexes found in database.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tFACES\tDIM\tINDEXED")
	fmt.Fprintln(w, "--\t-----\t-----\t---\t-------")
	for _, info := range infos {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\n", info.ID, info.Label, info.FaceCount, info.Dim, info.IndexedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
