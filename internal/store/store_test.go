package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupStore starts a throwaway Postgres container and returns a connected Store.
// It skips when Docker is unavailable.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "faceindex_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	// testcontainers can panic when the Docker socket is missing; treat that as unavailable.
	container, err := func() (c testcontainers.Container, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()
	if err != nil || container == nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}
	connStr := fmt.Sprintf("postgres://user:password@%s:%s/faceindex_test?sslmode=disable", host, port.Port())

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	t.Cleanup(func() { s.Close(ctx) })
	return s
}

func sampleIndex() *faceindex.Index {
	idx := faceindex.NewIndex()
	idx.Records = append(idx.Records,
		faceindex.FaceRecord{
			Name:      "alice_0",
			ImagePath: "/photos/alice.jpg",
			Location:  faceindex.BoundingBox{Top: 10, Right: 90, Bottom: 110, Left: 20},
			Embedding: faceindex.Embedding{0.1, math.Pi, -1e-300},
		},
		faceindex.FaceRecord{
			Name:      "bob_0",
			ImagePath: "/photos/bob.jpg",
			Location:  faceindex.BoundingBox{Top: 1, Right: 2, Bottom: 3, Left: 0},
			Embedding: faceindex.Embedding{1, 2, 3},
		},
	)
	return idx
}

// TestStoreIntegration runs a full round trip against a real Postgres container.
func TestStoreIntegration(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	// Empty database
	if _, _, err := s.LoadIndex(ctx, 0); !errors.Is(err, faceindex.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on empty database, got %v", err)
	}

	idx := sampleIndex()
	id, err := s.SaveIndex(ctx, "src-1", "2-faces.gob", idx)
	if err != nil {
		t.Fatalf("SaveIndex failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive ID, got %d", id)
	}

	got, info, err := s.LoadIndex(ctx, id)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if info.Label != "2-faces.gob" || info.Dim != 3 || info.FaceCount != 2 {
		t.Errorf("Unexpected info %+v", info)
	}
	if got.Len() != 2 {
		t.Fatalf("Expected 2 records, got %d", got.Len())
	}
	for i, rec := range got.Records {
		want := idx.Records[i]
		if rec.Name != want.Name || rec.ImagePath != want.ImagePath || rec.Location != want.Location {
			t.Errorf("Record %d = %+v, want %+v", i, rec, want)
		}
		for j := range want.Embedding {
			if math.Float64bits(rec.Embedding[j]) != math.Float64bits(want.Embedding[j]) {
				t.Errorf("Record %d embedding[%d] = %v, want %v", i, j, rec.Embedding[j], want.Embedding[j])
			}
		}
	}

	// Re-push replaces instead of duplicating
	smaller := faceindex.NewIndex()
	smaller.Records = append(smaller.Records, idx.Records[1])
	id2, err := s.SaveIndex(ctx, "src-1", "1-faces.gob", smaller)
	if err != nil {
		t.Fatalf("SaveIndex (re-push) failed: %v", err)
	}
	if id2 != id {
		t.Errorf("Expected re-push to reuse id %d, got %d", id, id2)
	}
	got, _, err = s.LoadIndex(ctx, 0)
	if err != nil {
		t.Fatalf("LoadIndex(latest) failed: %v", err)
	}
	if got.Len() != 1 || got.Records[0].Name != "bob_0" {
		t.Errorf("Expected only bob_0 after re-push, got %+v", got.Records)
	}

	// A second source, then list newest first
	if _, err := s.SaveIndex(ctx, "src-2", "empty.gob", faceindex.NewIndex()); err != nil {
		t.Fatalf("SaveIndex (empty) failed: %v", err)
	}
	infos, err := s.ListIndexes(ctx)
	if err != nil {
		t.Fatalf("ListIndexes failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 indexes, got %d", len(infos))
	}
	if infos[0].Label != "empty.gob" || infos[0].FaceCount != 0 {
		t.Errorf("Expected newest index first, got %+v", infos[0])
	}

	if _, _, err := s.LoadIndex(ctx, 9999); !errors.Is(err, faceindex.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := s.ListIndexes(ctx); err == nil {
		t.Error("Expected error listing after tables were dropped")
	}
}
