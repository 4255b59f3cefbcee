package faceindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"path/filepath"
	"strings"
)

// Embedding is the fixed-length face descriptor produced by the detector (128-d for dlib).
type Embedding []float64

// BoundingBox delimits a face in source-image pixel coordinates.
// Field order follows the detector convention: [top, right, bottom, left].
type BoundingBox struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Normalize returns the box with Top <= Bottom and Left <= Right.
func (b BoundingBox) Normalize() BoundingBox {
	if b.Top > b.Bottom {
		b.Top, b.Bottom = b.Bottom, b.Top
	}
	if b.Left > b.Right {
		b.Left, b.Right = b.Right, b.Left
	}
	return b
}

// Rect converts the box to an image.Rectangle (Min = left/top, Max = right/bottom).
func (b BoundingBox) Rect() image.Rectangle {
	n := b.Normalize()
	return image.Rect(n.Left, n.Top, n.Right, n.Bottom)
}

// Area returns the pixel area of the normalized box.
func (b BoundingBox) Area() int {
	n := b.Normalize()
	return (n.Bottom - n.Top) * (n.Right - n.Left)
}

// FaceRecord is the atomic indexed unit.
type FaceRecord struct {
	Name      string
	Embedding Embedding
	ImagePath string
	Location  BoundingBox
}

// Index is an ordered, append-only collection of face records.
// Insertion order is the build order.
type Index struct {
	Records []FaceRecord
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{Records: []FaceRecord{}}
}

// Len returns the number of records.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Records)
}

// Dim returns the embedding dimensionality of the index, or 0 if it is empty.
func (idx *Index) Dim() int {
	if idx.Len() == 0 {
		return 0
	}
	return len(idx.Records[0].Embedding)
}

func (idx *Index) append(r FaceRecord) {
	idx.Records = append(idx.Records, r)
}

// NameStrategy derives the display name of the i-th face found in an image.
type NameStrategy func(imagePath string, i int) string

// NameBase names faces "<basename>_<i>". Two images sharing a basename in
// different folders produce colliding names.
func NameBase(imagePath string, i int) string {
	base := filepath.Base(imagePath)
	prefix := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_%d", prefix, i)
}

// NamePathHash names faces "<hash>_<i>" where hash is derived from the full
// image path, so names are unique across folders.
func NamePathHash(imagePath string, i int) string {
	sum := sha256.Sum256([]byte(imagePath))
	return fmt.Sprintf("%s_%d", hex.EncodeToString(sum[:])[:12], i)
}
