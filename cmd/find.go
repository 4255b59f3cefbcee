package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/faceindex/internal/config"
	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/spf13/cobra"
)

type findOptions struct {
	Source    indexSource
	Tolerance float64
	JSON      bool
	Detector  detectorFlags
}

var findOpts findOptions

var findCmd = &cobra.Command{
	Use:   "find <image_path>",
	Short: "Search an index for faces similar to the face in an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		opts := findOpts
		if !cmd.Flags().Changed("threshold") {
			opts.Tolerance = cfg.Index.Tolerance
		}
		if err := opts.Source.validate(); err != nil {
			return err
		}
		return runFind(cmd.Context(), args[0], opts, opts.Detector.resolve(cmd, cfg.Detector), cmd.OutOrStdout())
	},
}

func init() {
	findCmd.Flags().Float64VarP(&findOpts.Tolerance, "threshold", "t", faceindex.DefaultTolerance, "Face matching threshold (lower is stricter)")
	findCmd.Flags().BoolVar(&findOpts.JSON, "json", false, "Print matches as JSON")
	addIndexSourceFlags(findCmd, &findOpts.Source)
	addDetectorFlags(findCmd, &findOpts.Detector)
	rootCmd.AddCommand(findCmd)
}

// indexSource selects an index file or a stored index.
type indexSource struct {
	Path    string
	FromDB  bool
	IndexID int64
}

func addIndexSourceFlags(cmd *cobra.Command, s *indexSource) {
	cmd.Flags().StringVar(&s.Path, "index", "", "Index file to search")
	cmd.Flags().BoolVar(&s.FromDB, "from-db", false, "Read the index from PostgreSQL instead of a file")
	cmd.Flags().Int64Var(&s.IndexID, "index-id", 0, "Stored index id (default: most recent)")
}

func (s indexSource) validate() error {
	if s.Path == "" && !s.FromDB {
		return errors.New("choose an index: --index <file> or --from-db")
	}
	if s.Path != "" && s.FromDB {
		return errors.New("--index and --from-db are mutually exclusive")
	}
	return nil
}

func (s indexSource) load(ctx context.Context) (*faceindex.Index, error) {
	if !s.FromDB {
		return faceindex.Load(s.Path)
	}
	db, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	idx, info, err := db.LoadIndex(ctx, s.IndexID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "🗄️  Using stored index %d (%s, %d faces)\n", info.ID, info.Label, info.FaceCount)
	return idx, nil
}

func runFind(ctx context.Context, imagePath string, opts findOptions, dc config.DetectorConfig, out io.Writer) error {
	if _, err := os.Stat(imagePath); err != nil {
		return report("Input file does not exist", err, nil)
	}

	idx, err := opts.Source.load(ctx)
	if err != nil {
		return report("Failed to load index", err, nil)
	}

	det, err := startDetector(ctx, dc)
	if err != nil {
		return report("Failed to start face detector", err, nil)
	}
	defer det.Close()

	fmt.Fprintln(os.Stderr, "🔍 Analyzing face...")
	query, err := queryEmbedding(ctx, det, imagePath)
	if err != nil {
		return report("Face analysis failed", err, det.Proc)
	}

	matches, err := faceindex.Search(query, idx, opts.Tolerance)
	if err != nil {
		return report("Search failed", err, nil)
	}
	return printMatches(out, matches, idx, opts.JSON)
}

// queryEmbedding returns the embedding of the first face the detector finds in imagePath.
func queryEmbedding(ctx context.Context, det faceindex.Detector, imagePath string) (faceindex.Embedding, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	faces, err := det.DetectFaces(ctx, imagePath, data)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("%s: %w", imagePath, faceindex.ErrNoFaceDetected)
	}
	if len(faces) > 1 {
		fmt.Fprintf(os.Stderr, "⚠️  Multiple faces detected (%d). Using the first face.\n", len(faces))
	}
	return faces[0].Embedding, nil
}

type matchJSON struct {
	Name      string  `json:"name"`
	Distance  float64 `json:"distance"`
	ImagePath string  `json:"image_path"`
	Position  int     `json:"position"`
}

func printMatches(w io.Writer, matches []faceindex.Match, idx *faceindex.Index, asJSON bool) error {
	if asJSON {
		rows := make([]matchJSON, 0, len(matches))
		for _, m := range matches {
			rows = append(rows, matchJSON{
				Name:      m.Name,
				Distance:  m.Distance,
				ImagePath: idx.Records[m.Position].ImagePath,
				Position:  m.Position,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDISTANCE\tIMAGE")
	fmt.Fprintln(tw, "----\t--------\t-----")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%.4f\t%s\n", m.Name, m.Distance, idx.Records[m.Position].ImagePath)
	}
	return tw.Flush()
}
