package faceindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/faceindex/internal/logger"
	"github.com/andresmejia3/faceindex/internal/utils"
)

// Detection is one face reported by the detector.
type Detection struct {
	Location  BoundingBox
	Embedding Embedding
}

// Detector is the face detection/encoding collaborator. It must be
// deterministic for identical input bytes.
type Detector interface {
	DetectFaces(ctx context.Context, imagePath string, imageData []byte) ([]Detection, error)
}

// DefaultMaxFacesPerImage caps runaway output on crowded images.
const DefaultMaxFacesPerImage = 4

// Builder turns an ordered list of images into an Index.
type Builder struct {
	Detector         Detector
	MaxFacesPerImage int
	// NameStrategy defaults to NameBase.
	NameStrategy NameStrategy
	Progress     ProgressObserver
	Preview      PreviewObserver
}

// BuildStats summarizes a build.
type BuildStats struct {
	ImagesTotal     int
	ImagesProcessed int
	ImagesIndexed   int
	ImagesNoFace    int
	ImagesFailed    int
	FacesIndexed    int
	FacesDropped    int
	Failures        []string
	Cancelled       bool
}

// imageResult is the outcome of processing a single image.
type imageResult struct {
	indexed int
	dropped int
}

// Build processes imagePaths in order, one image at a time. Per-image
// failures are logged and skipped. Observers are called synchronously on the
// calling goroutine. If ctx is cancelled the images processed so far are
// returned as a partial index with Cancelled set.
func (b *Builder) Build(ctx context.Context, imagePaths []string) (*Index, *BuildStats, error) {
	if b.Detector == nil {
		return nil, nil, fmt.Errorf("%w: detector is required", ErrInvalidArgument)
	}
	if b.MaxFacesPerImage < 1 {
		return nil, nil, fmt.Errorf("%w: max faces per image must be >= 1, got %d", ErrInvalidArgument, b.MaxFacesPerImage)
	}
	naming := b.NameStrategy
	if naming == nil {
		naming = NameBase
	}

	idx := NewIndex()
	stats := &BuildStats{ImagesTotal: len(imagePaths)}

	for i, path := range imagePaths {
		if ctx.Err() != nil {
			logger.Warn("Build cancelled after %d of %d images", i, len(imagePaths))
			stats.Cancelled = true
			break
		}

		res, err := b.processImage(ctx, idx, path, naming)
		switch {
		case err == nil:
			stats.ImagesIndexed++
			stats.FacesIndexed += res.indexed
			stats.FacesDropped += res.dropped
		case errors.Is(err, ErrNoFaceDetected):
			stats.ImagesNoFace++
		default:
			stats.ImagesFailed++
			stats.Failures = append(stats.Failures, fmt.Sprintf("%s: %v", path, err))
			logger.Error("Error processing %s: %v", filepath.Base(path), err)
		}

		stats.ImagesProcessed++
		if b.Progress != nil {
			b.Progress.OnProgress(i+1, len(imagePaths))
		}
	}

	return idx, stats, nil
}

// processImage detects faces in one image and appends up to
// MaxFacesPerImage records. Records are only appended once every detection
// of the image has been validated.
func (b *Builder) processImage(ctx context.Context, idx *Index, path string, naming NameStrategy) (imageResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return imageResult{}, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		return imageResult{}, fmt.Errorf("%w: %w", ErrDecodeFailure, err)
	}

	detections, err := b.Detector.DetectFaces(ctx, path, data)
	if err != nil {
		return imageResult{}, fmt.Errorf("detector failed: %w", err)
	}

	if len(detections) == 0 {
		logger.Warn("No face found in %s", filepath.Base(path))
		if b.Preview != nil {
			b.Preview.OnPreview(nil, path, NoFaceLabel)
		}
		return imageResult{}, ErrNoFaceDetected
	}

	kept := detections
	if len(kept) > b.MaxFacesPerImage {
		kept = kept[:b.MaxFacesPerImage]
	}

	dim := idx.Dim()
	for i, d := range kept {
		if len(d.Embedding) == 0 {
			return imageResult{}, fmt.Errorf("%w: face %d has an empty embedding", ErrInvalidDetection, i)
		}
		if dim == 0 {
			dim = len(d.Embedding)
		}
		if len(d.Embedding) != dim {
			return imageResult{}, fmt.Errorf("%w: face %d has %d dimensions, index has %d", ErrInvalidDetection, i, len(d.Embedding), dim)
		}
	}

	for i, d := range kept {
		rec := FaceRecord{
			Name:      naming(path, i),
			Embedding: append(Embedding(nil), d.Embedding...),
			ImagePath: path,
			Location:  d.Location.Normalize(),
		}
		idx.append(rec)
		logger.Debug("Indexed %s from %s at %+v", rec.Name, path, rec.Location)

		if b.Preview != nil {
			b.Preview.OnPreview(utils.CropRGBA(img, rec.Location.Rect()), path, rec.Name)
		}
	}

	return imageResult{indexed: len(kept), dropped: len(detections) - len(kept)}, nil
}
