package faceindex

import "errors"

// Error taxonomy. Per-image errors are reported as diagnostics during a build;
// storage and query errors propagate to the caller.
var (
	// ErrDecodeFailure indicates an image could not be read or decoded.
	ErrDecodeFailure = errors.New("image decode failed")

	// ErrNoFaceDetected indicates the detector found no face in an image.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrInvalidDetection indicates the detector returned an unusable result
	// (empty embedding or inconsistent dimensionality).
	ErrInvalidDetection = errors.New("invalid detection")

	// ErrDimensionMismatch indicates a query embedding does not match the
	// dimensionality of the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidArgument indicates a precondition violation by the caller.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorage is the parent of all persistence failures.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound indicates a persisted index does not exist.
	ErrNotFound = errors.New("index not found")

	// ErrCorruptData indicates persisted content could not be decoded into records.
	ErrCorruptData = errors.New("corrupt index data")
)

// storageError joins a specific storage cause with ErrStorage so both match errors.Is.
type storageError struct {
	kind error
	err  error
}

func (e *storageError) Error() string {
	if e.err == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *storageError) Unwrap() []error {
	errs := []error{e.kind, ErrStorage}
	if e.err != nil {
		errs = append(errs, e.err)
	}
	return errs
}
