package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andresmejia3/faceindex/internal/config"
	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/andresmejia3/faceindex/internal/logger"
	"github.com/andresmejia3/faceindex/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type indexOptions struct {
	InputPath    string
	OutputPath   string
	OutputDir    string
	MaxFaces     int
	NameStrategy string
	Extensions   []string
	PreviewDir   string
	Detector     detectorFlags
}

var indexOpts indexOptions

var indexCmd = &cobra.Command{
	Use:   "index [image...]",
	Short: "Detect faces in a photo collection and save an index",
	Long: "Detects faces in every image of --input (recursively) and in the given files,\n" +
		"then saves the embeddings to an index file. Ctrl+C stops early and saves what was indexed so far.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		opts := indexOpts
		applyIndexConfig(cmd, &opts, cfg)
		if err := validateIndexFlags(&opts, args); err != nil {
			return err
		}
		return runIndex(cmd.Context(), opts, opts.Detector.resolve(cmd, cfg.Detector), args)
	},
}

func init() {
	indexCmd.Flags().StringVarP(&indexOpts.InputPath, "input", "i", "", "Folder of images to index (recursive)")
	indexCmd.Flags().StringVarP(&indexOpts.OutputPath, "output", "o", "", "Index file to write (default: <output-dir>/<count>-faces-<timestamp>.gob)")
	indexCmd.Flags().StringVar(&indexOpts.OutputDir, "output-dir", "faces_indexed", "Directory for generated index files")
	indexCmd.Flags().IntVarP(&indexOpts.MaxFaces, "max-faces", "m", faceindex.DefaultMaxFacesPerImage, "Maximum faces kept per image")
	indexCmd.Flags().StringVar(&indexOpts.NameStrategy, "name-strategy", config.NameStrategyBase, "Record naming (base or path-hash)")
	indexCmd.Flags().StringSliceVar(&indexOpts.Extensions, "ext", nil, "Image extensions to include (default: common raster formats)")
	indexCmd.Flags().StringVar(&indexOpts.PreviewDir, "preview-dir", "", "Write a crop of every indexed face to this directory")
	addDetectorFlags(indexCmd, &indexOpts.Detector)
	rootCmd.AddCommand(indexCmd)
}

// applyIndexConfig fills options the user did not set on the command line from the config.
func applyIndexConfig(cmd *cobra.Command, opts *indexOptions, c *config.Config) {
	if c == nil {
		return
	}
	if !cmd.Flags().Changed("output-dir") {
		opts.OutputDir = c.Index.OutputDir
	}
	if !cmd.Flags().Changed("max-faces") {
		opts.MaxFaces = c.Index.MaxFaces
	}
	if !cmd.Flags().Changed("name-strategy") {
		opts.NameStrategy = c.Index.NameStrategy
	}
	if !cmd.Flags().Changed("ext") && len(c.Index.Extensions) > 0 {
		opts.Extensions = c.Index.Extensions
	}
}

func validateIndexFlags(opts *indexOptions, args []string) error {
	if opts.InputPath == "" && len(args) == 0 {
		return errors.New("nothing to index: pass --input or image files")
	}
	if opts.InputPath != "" {
		info, err := os.Stat(opts.InputPath)
		if err != nil {
			return fmt.Errorf("input folder: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("input %s is not a directory", opts.InputPath)
		}
	}
	if opts.MaxFaces < 1 {
		return fmt.Errorf("--max-faces must be at least 1, got %d", opts.MaxFaces)
	}
	if _, err := nameStrategy(opts.NameStrategy); err != nil {
		return err
	}
	return nil
}

func nameStrategy(name string) (faceindex.NameStrategy, error) {
	switch name {
	case "", config.NameStrategyBase:
		return faceindex.NameBase, nil
	case config.NameStrategyPathHash:
		return faceindex.NamePathHash, nil
	default:
		return nil, fmt.Errorf("unknown name strategy %q (want %s or %s)", name, config.NameStrategyBase, config.NameStrategyPathHash)
	}
}

// defaultIndexPath names an index after its size and creation time.
func defaultIndexPath(dir string, count int, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%d-faces-%s.gob", count, now.Format("2006-01-02--15h-04m-05s")))
}

// collectInputs merges the folder scan with explicit arguments, dropping duplicates.
func collectInputs(opts indexOptions, args []string) ([]string, error) {
	var paths []string
	if opts.InputPath != "" {
		found, err := utils.CollectImagePaths(opts.InputPath, opts.Extensions)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", opts.InputPath, err)
		}
		paths = append(paths, found...)
	}
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}
	for _, a := range args {
		if !seen[a] {
			seen[a] = true
			paths = append(paths, a)
		}
	}
	return paths, nil
}

// previewWriter saves face crops as PNGs, numbered in arrival order.
type previewWriter struct {
	dir string
	seq int
}

func (p *previewWriter) OnPreview(face *image.RGBA, sourcePath, label string) {
	if face == nil || label == faceindex.NoFaceLabel {
		logger.Debug("No preview for %s: %s", filepath.Base(sourcePath), label)
		return
	}
	p.seq++
	if face.Bounds().Empty() {
		return
	}
	name := fmt.Sprintf("%05d_%s.png", p.seq, sanitizeLabel(label))
	if err := utils.SaveImage(filepath.Join(p.dir, name), face); err != nil {
		logger.Warn("Failed to write preview %s: %v", name, err)
	}
}

func sanitizeLabel(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, s)
}

// runIndex orchestrates a build: input discovery, detector startup, progress tracking and saving.
func runIndex(ctx context.Context, opts indexOptions, dc config.DetectorConfig, args []string) error {
	paths, err := collectInputs(opts, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "❌ No images found.")
		return nil
	}
	fmt.Fprintf(os.Stderr, "📂 Found %d images\n", len(paths))

	naming, _ := nameStrategy(opts.NameStrategy)

	det, err := startDetector(ctx, dc)
	if err != nil {
		return report("Failed to start face detector", err, nil)
	}
	defer det.Close()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("🔍 Indexing"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	builder := &faceindex.Builder{
		Detector:         det,
		MaxFacesPerImage: opts.MaxFaces,
		NameStrategy:     naming,
		Progress: faceindex.ProgressFunc(func(done, total int) {
			bar.Set(done)
		}),
	}
	if opts.PreviewDir != "" {
		if err := os.MkdirAll(opts.PreviewDir, 0755); err != nil {
			return fmt.Errorf("failed to create preview dir: %w", err)
		}
		builder.Preview = &previewWriter{dir: opts.PreviewDir}
	}

	idx, stats, err := builder.Build(ctx, paths)
	if err != nil {
		return err
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if stats.Cancelled {
		fmt.Fprintf(os.Stderr, "⚠️  Interrupted after %d of %d images. Saving partial index.\n", stats.ImagesProcessed, stats.ImagesTotal)
	}
	fmt.Fprintf(os.Stderr, "✅ Indexed %d faces from %d images (%d without faces, %d failed, %d faces over the cap)\n",
		stats.FacesIndexed, stats.ImagesIndexed, stats.ImagesNoFace, stats.ImagesFailed, stats.FacesDropped)

	// Surface the interpreter's own logs once instead of per image.
	if stats.ImagesFailed > 0 && det.Proc != nil && det.Proc.Stderr.Len() > 0 {
		utils.ShowError(fmt.Sprintf("%d images failed", stats.ImagesFailed), nil, det.Proc)
	}

	out := opts.OutputPath
	if out == "" {
		out = defaultIndexPath(opts.OutputDir, idx.Len(), time.Now())
	}
	if err := faceindex.Save(idx, out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 Saved index to %s\n", out)
	fmt.Println(out)
	return nil
}
