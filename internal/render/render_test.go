package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/andresmejia3/faceindex/internal/faceindex"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func TestDrawFaces(t *testing.T) {
	src := whiteImage(100, 100)
	records := []faceindex.FaceRecord{{
		Name:     "alice_0",
		Location: faceindex.BoundingBox{Top: 10, Right: 90, Bottom: 80, Left: 20},
	}}

	out := DrawFaces(src, records)

	if out == src {
		t.Fatal("DrawFaces must return a copy")
	}
	if got := src.RGBAAt(20, 10); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Source image was modified: %v", got)
	}

	tests := []struct {
		name string
		x, y int
		want color.RGBA
	}{
		{"top edge", 50, 11, boxColor},
		{"left edge", 21, 40, boxColor},
		{"right edge", 88, 40, boxColor},
		{"box interior", 50, 40, color.RGBA{255, 255, 255, 255}},
		{"outside box", 5, 5, color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := out.RGBAAt(tt.x, tt.y); got != tt.want {
				t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}

	// The label strip holds some black text pixels.
	var text int
	for y := 80 - labelHeight; y < 80; y++ {
		for x := 20; x < 90; x++ {
			if out.RGBAAt(x, y) == textColor {
				text++
			}
		}
	}
	if text == 0 {
		t.Error("Expected label text inside the strip")
	}
}

func TestDrawFaces_ClipsAndSkips(t *testing.T) {
	src := whiteImage(40, 40)
	records := []faceindex.FaceRecord{
		// Leaks past the right and bottom edges
		{Name: "edge", Location: faceindex.BoundingBox{Top: 20, Right: 100, Bottom: 100, Left: 30}},
		// Fully outside
		{Name: "gone", Location: faceindex.BoundingBox{Top: 200, Right: 300, Bottom: 300, Left: 200}},
		// Inverted box is normalized before drawing
		{Name: "flip", Location: faceindex.BoundingBox{Top: 15, Right: 0, Bottom: 0, Left: 15}},
	}

	out := DrawFaces(src, records)
	if out.Bounds() != src.Bounds() {
		t.Fatalf("Bounds changed: %v", out.Bounds())
	}
	if got := out.RGBAAt(30, 30); got != boxColor {
		t.Errorf("Expected clipped box edge at (30,30), got %v", got)
	}
	if got := out.RGBAAt(1, 7); got != boxColor {
		t.Errorf("Expected normalized box edge at (1,7), got %v", got)
	}
}

func TestDrawFaces_NoRecords(t *testing.T) {
	src := whiteImage(5, 5)
	out := DrawFaces(src, nil)
	for i := range out.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatal("Image changed without records")
		}
	}
}
