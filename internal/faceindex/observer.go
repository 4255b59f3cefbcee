package faceindex

import (
	"image"
	"sync"
)

// NoFaceLabel is the preview label sent when an image contains no face.
const NoFaceLabel = "NO FACES FOUND"

// ProgressObserver receives one notification per processed image.
// done runs from 1 to total, strictly increasing.
type ProgressObserver interface {
	OnProgress(done, total int)
}

// PreviewObserver receives one notification per indexed face, or a single
// notification with a nil face and NoFaceLabel when an image has no face.
// The face buffer is owned by the observer after the call.
type PreviewObserver interface {
	OnPreview(face *image.RGBA, sourcePath, label string)
}

// ProgressFunc adapts a plain function to ProgressObserver.
type ProgressFunc func(done, total int)

func (f ProgressFunc) OnProgress(done, total int) { f(done, total) }

// PreviewFunc adapts a plain function to PreviewObserver.
type PreviewFunc func(face *image.RGBA, sourcePath, label string)

func (f PreviewFunc) OnPreview(face *image.RGBA, sourcePath, label string) {
	f(face, sourcePath, label)
}

// ProgressEvent is a recorded OnProgress call.
type ProgressEvent struct {
	Done  int
	Total int
}

// PreviewEvent is a recorded OnPreview call.
type PreviewEvent struct {
	Face       *image.RGBA
	SourcePath string
	Label      string
}

// Recorder implements both observer interfaces and keeps every notification.
// It is safe to read from another goroutine while a build is running.
type Recorder struct {
	mu       sync.Mutex
	progress []ProgressEvent
	previews []PreviewEvent
}

func (r *Recorder) OnProgress(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, ProgressEvent{Done: done, Total: total})
}

func (r *Recorder) OnPreview(face *image.RGBA, sourcePath, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.previews = append(r.previews, PreviewEvent{Face: face, SourcePath: sourcePath, Label: label})
}

// Progress returns a copy of the recorded progress events.
func (r *Recorder) Progress() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent(nil), r.progress...)
}

// Previews returns a copy of the recorded preview events.
func (r *Recorder) Previews() []PreviewEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PreviewEvent(nil), r.previews...)
}
