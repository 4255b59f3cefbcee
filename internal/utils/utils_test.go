package utils

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestCollectImagePaths(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"b.JPG",
		"a.png",
		"notes.txt",
		filepath.Join("sub", "c.jpeg"),
		filepath.Join("sub", "deeper", "d.webp"),
		filepath.Join("sub", "raw.cr2"),
	}
	for _, f := range files {
		p := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := CollectImagePaths(root, nil)
	if err != nil {
		t.Fatalf("CollectImagePaths failed: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.png"),
		filepath.Join(root, "b.JPG"),
		filepath.Join(root, "sub", "c.jpeg"),
		filepath.Join(root, "sub", "deeper", "d.webp"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectImagePaths() = %v, want %v", got, want)
	}

	// Custom extensions, with and without the dot.
	got, err = CollectImagePaths(root, []string{"cr2", ".TXT"})
	if err != nil {
		t.Fatal(err)
	}
	want = []string{filepath.Join(root, "notes.txt"), filepath.Join(root, "sub", "raw.cr2")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CollectImagePaths() = %v, want %v", got, want)
	}

	if _, err := CollectImagePaths(filepath.Join(root, "missing"), nil); err == nil {
		t.Error("Expected error for missing root")
	}
}

func TestGenerateFileID(t *testing.T) {
	// Integration test using the OS filesystem
	tmp, err := os.CreateTemp(t.TempDir(), "index_test")
	if err != nil {
		t.Fatal(err)
	}

	// Write dummy content
	if _, err := tmp.Write([]byte("fake index content")); err != nil {
		t.Fatal(err)
	}
	tmp.Close()

	id, err := GenerateFileID(tmp.Name())
	if err != nil || id == "" {
		t.Errorf("Failed to generate ID: %v", err)
	}

	// Verify Determinism
	id2, _ := GenerateFileID(tmp.Name())
	if id != id2 {
		t.Errorf("Hash is not deterministic. Got %s, then %s", id, id2)
	}

	// Verify Sensitivity (Change content -> Change ID)
	f, _ := os.OpenFile(tmp.Name(), os.O_APPEND|os.O_WRONLY, 0644)
	f.Write([]byte(" modification"))
	f.Close()
	// Force a distinct mtime on filesystems with coarse timestamps.
	later := time.Now().Add(2 * time.Second)
	os.Chtimes(tmp.Name(), later, later)

	id3, _ := GenerateFileID(tmp.Name())
	if id == id3 {
		t.Error("Hash did not change after file modification")
	}
}

func TestCropRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src.Set(3, 4, color.RGBA{R: 255, A: 255})

	crop := CropRGBA(src, image.Rect(2, 3, 6, 8))
	if crop.Bounds() != image.Rect(0, 0, 4, 5) {
		t.Fatalf("Unexpected crop bounds %v", crop.Bounds())
	}
	if got := crop.RGBAAt(1, 1); got.R != 255 {
		t.Errorf("Expected red pixel at (1,1), got %v", got)
	}

	// Boxes leaking outside the image are clipped.
	clipped := CropRGBA(src, image.Rect(-5, -5, 4, 4))
	if clipped.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Errorf("Expected clipped bounds 4x4, got %v", clipped.Bounds())
	}

	outside := CropRGBA(src, image.Rect(20, 20, 30, 30))
	if !outside.Bounds().Empty() {
		t.Errorf("Expected empty crop, got %v", outside.Bounds())
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})

	for _, name := range []string{"out.png", "out.jpg"} {
		path := filepath.Join(t.TempDir(), name)
		if err := SaveImage(path, img); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", name, err)
		}
		got, err := LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", name, err)
		}
		if got.Bounds().Dx() != 3 || got.Bounds().Dy() != 2 {
			t.Errorf("%s: unexpected bounds %v", name, got.Bounds())
		}
	}

	if _, _, err := DecodeImage([]byte("garbage")); err == nil {
		t.Error("Expected decode error for garbage input")
	}
}
