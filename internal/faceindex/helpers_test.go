package faceindex

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// fakeDetector returns canned detections keyed by image base name.
type fakeDetector struct {
	faces map[string][]Detection
	fail  map[string]error
	calls []string
	// onCall runs before each detection; used to cancel mid-build.
	onCall func(path string)
}

func (d *fakeDetector) DetectFaces(_ context.Context, imagePath string, _ []byte) ([]Detection, error) {
	base := filepath.Base(imagePath)
	d.calls = append(d.calls, base)
	if d.onCall != nil {
		d.onCall(imagePath)
	}
	if err, ok := d.fail[base]; ok {
		return nil, err
	}
	return d.faces[base], nil
}

var errDetector = errors.New("engine exploded")

// writePNG writes a w x h gradient image and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeGarbage writes a file that no image decoder accepts.
func writeGarbage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("definitely not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func vec(vals ...float64) Embedding {
	return Embedding(vals)
}

func det(top, right, bottom, left int, e Embedding) Detection {
	return Detection{Location: BoundingBox{Top: top, Right: right, Bottom: bottom, Left: left}, Embedding: e}
}
