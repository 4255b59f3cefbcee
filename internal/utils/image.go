package utils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes an encoded raster image (jpeg, png, gif, bmp, tiff, webp).
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// LoadImage reads and decodes the image at path.
func LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := DecodeImage(data)
	return img, err
}

// CropRGBA copies the part of img inside rect into a new RGBA buffer whose
// bounds start at (0,0). The rectangle is clipped to the image bounds; an
// empty intersection yields a zero-sized image.
func CropRGBA(img image.Image, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	if rect.Empty() {
		return dst
	}
	draw.Copy(dst, image.Point{}, img, rect, draw.Src, nil)
	return dst
}

// ToRGBA returns a mutable RGBA copy of img with the same bounds.
func ToRGBA(img image.Image) *image.RGBA {
	dst := image.NewRGBA(img.Bounds())
	draw.Copy(dst, img.Bounds().Min, img, img.Bounds(), draw.Src, nil)
	return dst
}

// SaveImage encodes img as JPEG or PNG depending on the extension of path.
func SaveImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
