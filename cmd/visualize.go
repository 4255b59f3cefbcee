package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/andresmejia3/faceindex/internal/logger"
	"github.com/andresmejia3/faceindex/internal/render"
	"github.com/andresmejia3/faceindex/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type visualizeOptions struct {
	Source    indexSource
	OutputDir string
	Workers   int
}

var visualizeOpts visualizeOptions

var visualizeCmd = &cobra.Command{
	Use:   "visualize [index_file]",
	Short: "Draw the indexed face boxes and names onto copies of the source images",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		opts := visualizeOpts
		if len(args) == 1 {
			opts.Source.Path = args[0]
		}
		if !cmd.Flags().Changed("workers") {
			opts.Workers = cfg.Index.Workers
		}
		if err := opts.Source.validate(); err != nil {
			return err
		}
		if opts.Workers < 1 {
			return fmt.Errorf("--workers must be at least 1, got %d", opts.Workers)
		}

		idx, err := opts.Source.load(cmd.Context())
		if err != nil {
			return report("Failed to load index", err, nil)
		}
		written, err := runVisualize(cmd.Context(), idx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "🖼️  Wrote %d images to %s\n", written, opts.OutputDir)
		return nil
	},
}

func init() {
	visualizeCmd.Flags().StringVarP(&visualizeOpts.OutputDir, "output", "o", "visualized", "Directory for annotated images")
	visualizeCmd.Flags().IntVarP(&visualizeOpts.Workers, "workers", "w", 4, "Images rendered in parallel")
	addIndexSourceFlags(visualizeCmd, &visualizeOpts.Source)
	rootCmd.AddCommand(visualizeCmd)
}

// visualizedPath maps a source image to its annotated copy. Formats we cannot
// encode fall back to PNG.
func visualizedPath(outDir, source string) string {
	base := filepath.Base(source)
	switch strings.ToLower(filepath.Ext(base)) {
	case ".jpg", ".jpeg", ".png":
	default:
		base = strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
	}
	return filepath.Join(outDir, "visualized_"+base)
}

// visualizedPaths assigns every source its output file. Sources that would
// share an output name get a path-hash prefix so no two workers write the
// same file.
func visualizedPaths(outDir string, sources []string) map[string]string {
	seen := make(map[string]int, len(sources))
	for _, src := range sources {
		seen[strings.ToLower(visualizedPath(outDir, src))]++
	}
	out := make(map[string]string, len(sources))
	for _, src := range sources {
		p := visualizedPath(outDir, src)
		if seen[strings.ToLower(p)] > 1 {
			sum := sha256.Sum256([]byte(src))
			base := strings.TrimPrefix(filepath.Base(p), "visualized_")
			p = filepath.Join(outDir, "visualized_"+hex.EncodeToString(sum[:])[:12]+"_"+base)
		}
		out[src] = p
	}
	return out
}

// runVisualize renders every image of idx with a bounded pool and returns the
// number of files written. Missing or unreadable images are skipped with a warning.
func runVisualize(ctx context.Context, idx *faceindex.Index, opts visualizeOptions) (int, error) {
	groups := faceindex.GroupByImage(idx)
	paths := groups.Paths()
	if len(paths) == 0 {
		return 0, nil
	}
	outputs := visualizedPaths(opts.OutputDir, paths)
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("🎨 Rendering"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		path := path
		records := groups[path]
		g.Go(func() error {
			defer bar.Add(1)

			img, err := utils.LoadImage(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					logger.Warn("Skipping missing image %s", path)
				} else {
					logger.Warn("Skipping %s: %v", path, err)
				}
				return nil
			}

			out := outputs[path]
			if err := utils.SaveImage(out, render.DrawFaces(img, records)); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			written.Add(1)
			return nil
		})
	}

	err := g.Wait()
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err == nil {
		err = ctx.Err()
	}
	return int(written.Load()), err
}
