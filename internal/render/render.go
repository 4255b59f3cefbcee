// Package render draws face annotations onto images.
package render

import (
	"image"
	"image/color"

	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/andresmejia3/faceindex/internal/utils"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	boxThickness = 3
	labelHeight  = 17
	labelPadding = 4
)

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	textColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// DrawFaces returns a copy of img with a box and a name strip for every record.
// The source image is left untouched.
func DrawFaces(img image.Image, records []faceindex.FaceRecord) *image.RGBA {
	out := utils.ToRGBA(img)
	for _, rec := range records {
		drawFace(out, rec.Location.Normalize().Rect(), rec.Name)
	}
	return out
}

func drawFace(img *image.RGBA, rect image.Rectangle, label string) {
	if rect.Intersect(img.Bounds()).Empty() {
		return
	}

	// Outline
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+boxThickness), boxColor)
	fillRect(img, image.Rect(rect.Min.X, rect.Max.Y-boxThickness, rect.Max.X, rect.Max.Y), boxColor)
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+boxThickness, rect.Max.Y), boxColor)
	fillRect(img, image.Rect(rect.Max.X-boxThickness, rect.Min.Y, rect.Max.X, rect.Max.Y), boxColor)

	// Label strip along the bottom edge, inside the box
	strip := image.Rect(rect.Min.X, rect.Max.Y-labelHeight, rect.Max.X, rect.Max.Y)
	if strip.Min.Y < rect.Min.Y {
		strip.Min.Y = rect.Min.Y
	}
	fillRect(img, strip, boxColor)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(rect.Min.X+labelPadding, rect.Max.Y-labelPadding),
	}
	d.DrawString(label)
}

// fillRect paints rect (clipped to the image) with c using direct slice access.
func fillRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	stride := img.Stride
	pix := img.Pix
	imgMinX, imgMinY := img.Rect.Min.X, img.Rect.Min.Y
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		rowStart := (y-imgMinY)*stride + (rect.Min.X-imgMinX)*4
		for x := 0; x < rect.Dx(); x++ {
			off := rowStart + x*4
			pix[off] = c.R
			pix[off+1] = c.G
			pix[off+2] = c.B
			pix[off+3] = c.A
		}
	}
}
