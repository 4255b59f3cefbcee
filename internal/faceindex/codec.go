package faceindex

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// snapshotFormat tags a persisted index so unrelated gob files are rejected.
const snapshotFormat = "faceindex/records"

// snapshot is the on-disk shape of an Index. gob is self-describing and
// stores float64 values bit-exact.
type snapshot struct {
	Format  string
	Dim     int
	Count   int
	Records []FaceRecord
}

// Encode writes idx to w as a single snapshot. It refuses an index that
// Decode would reject.
func Encode(w io.Writer, idx *Index) error {
	if idx == nil {
		return fmt.Errorf("%w: index is nil", ErrInvalidArgument)
	}
	if err := checkRecords(idx.Records); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	snap := snapshot{
		Format:  snapshotFormat,
		Dim:     idx.Dim(),
		Count:   idx.Len(),
		Records: idx.Records,
	}
	if err := gob.NewEncoder(w).Encode(&snap); err != nil {
		return &storageError{kind: ErrStorage, err: fmt.Errorf("failed to encode index: %w", err)}
	}
	return nil
}

// checkRecords enforces a non-empty embedding per record and a single
// dimensionality across the index.
func checkRecords(records []FaceRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Embedding)
	for i, rec := range records {
		if len(rec.Embedding) == 0 || len(rec.Embedding) != dim {
			return fmt.Errorf("%w: record %d (%s) has %d dimensions, expected %d", ErrDimensionMismatch, i, rec.Name, len(rec.Embedding), dim)
		}
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Index, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, &storageError{kind: ErrCorruptData, err: err}
	}
	if snap.Format != snapshotFormat {
		return nil, &storageError{kind: ErrCorruptData, err: fmt.Errorf("unexpected format %q", snap.Format)}
	}
	if snap.Count != len(snap.Records) {
		return nil, &storageError{kind: ErrCorruptData, err: fmt.Errorf("header declares %d records, found %d", snap.Count, len(snap.Records))}
	}
	for i, rec := range snap.Records {
		if len(rec.Embedding) == 0 || len(rec.Embedding) != snap.Dim {
			return nil, &storageError{kind: ErrCorruptData, err: fmt.Errorf("record %d (%s) has %d dimensions, expected %d", i, rec.Name, len(rec.Embedding), snap.Dim)}
		}
	}

	idx := NewIndex()
	if len(snap.Records) > 0 {
		idx.Records = snap.Records
	}
	return idx, nil
}

// Save writes idx to path, creating missing parent directories. The file is
// written to a temporary sibling and renamed into place, so readers never
// observe a partial snapshot.
func Save(idx *Index, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &storageError{kind: ErrStorage, err: fmt.Errorf("failed to create directory %s: %w", dir, err)}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &storageError{kind: ErrStorage, err: fmt.Errorf("failed to create index file in %s: %w", dir, err)}
	}
	// Remove is a no-op once the rename succeeded.
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, idx); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &storageError{kind: ErrStorage, err: err}
	}
	if err := tmp.Close(); err != nil {
		return &storageError{kind: ErrStorage, err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &storageError{kind: ErrStorage, err: fmt.Errorf("failed to write %s: %w", path, err)}
	}
	return nil
}

// Load reads an index written by Save.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &storageError{kind: ErrNotFound, err: err}
		}
		return nil, &storageError{kind: ErrStorage, err: err}
	}
	defer f.Close()

	idx, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}
