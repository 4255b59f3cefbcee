package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/faceindex/internal/faceindex"
	"github.com/jackc/pgx/v5"
)

// Store mirrors face indexes into PostgreSQL.
type Store struct {
	conn *pgx.Conn
}

// IndexInfo summarizes one stored index.
type IndexInfo struct {
	ID        int64
	Label     string
	SourceID  string
	Dim       int
	FaceCount int
	IndexedAt time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
// Embeddings are FLOAT8[] so values round-trip bit-exact.
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS face_indexes (
			id BIGSERIAL PRIMARY KEY,
			label TEXT NOT NULL,
			source_id TEXT NOT NULL UNIQUE,
			dim INT NOT NULL,
			face_count INT NOT NULL,
			indexed_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS face_records (
			index_id BIGINT NOT NULL REFERENCES face_indexes(id) ON DELETE CASCADE,
			seq INT NOT NULL,
			name TEXT NOT NULL,
			image_path TEXT NOT NULL,
			location INT[] NOT NULL,
			embedding FLOAT8[] NOT NULL,
			PRIMARY KEY (index_id, seq)
		);
		CREATE INDEX IF NOT EXISTS face_records_image_path_idx ON face_records (image_path);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveIndex stores idx under sourceID and returns its row id. Pushing the same
// source again replaces the previous records so re-pushes are idempotent.
func (s *Store) SaveIndex(ctx context.Context, sourceID, label string, idx *faceindex.Index) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO face_indexes (label, source_id, dim, face_count, indexed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (source_id) DO UPDATE
			SET label = EXCLUDED.label, dim = EXCLUDED.dim,
			    face_count = EXCLUDED.face_count, indexed_at = NOW()
		RETURNING id
	`, label, sourceID, idx.Dim(), idx.Len()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert index: %w", err)
	}

	// 1. Clean up old rows to ensure idempotency
	if _, err := tx.Exec(ctx, "DELETE FROM face_records WHERE index_id = $1", id); err != nil {
		return 0, err
	}

	rows := make([][]any, 0, idx.Len())
	for i, rec := range idx.Records {
		loc := []int32{
			int32(rec.Location.Top), int32(rec.Location.Right),
			int32(rec.Location.Bottom), int32(rec.Location.Left),
		}
		rows = append(rows, []any{id, int32(i), rec.Name, rec.ImagePath, loc, []float64(rec.Embedding)})
	}

	// 2. Bulk insert in insertion order
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"face_records"},
		[]string{"index_id", "seq", "name", "image_path", "location", "embedding"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy records: %w", err)
	}

	return id, tx.Commit(ctx)
}

// LoadIndex reads the index with the given id, or the most recent one if id <= 0.
// Records come back in their original insertion order.
func (s *Store) LoadIndex(ctx context.Context, id int64) (*faceindex.Index, *IndexInfo, error) {
	info, err := s.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.conn.Query(ctx, `
		SELECT name, image_path, location, embedding
		FROM face_records WHERE index_id = $1 ORDER BY seq
	`, info.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	idx := faceindex.NewIndex()
	for rows.Next() {
		var rec faceindex.FaceRecord
		var loc []int32
		var emb []float64
		if err := rows.Scan(&rec.Name, &rec.ImagePath, &loc, &emb); err != nil {
			return nil, nil, err
		}
		if len(loc) != 4 {
			return nil, nil, fmt.Errorf("record %q: %w: location has %d values", rec.Name, faceindex.ErrCorruptData, len(loc))
		}
		rec.Location = faceindex.BoundingBox{
			Top: int(loc[0]), Right: int(loc[1]), Bottom: int(loc[2]), Left: int(loc[3]),
		}
		rec.Embedding = faceindex.Embedding(emb)
		idx.Records = append(idx.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return idx, info, nil
}

func (s *Store) lookup(ctx context.Context, id int64) (*IndexInfo, error) {
	query := `SELECT id, label, source_id, dim, face_count, indexed_at FROM face_indexes WHERE id = $1`
	args := []any{id}
	if id <= 0 {
		query = `SELECT id, label, source_id, dim, face_count, indexed_at FROM face_indexes ORDER BY indexed_at DESC, id DESC LIMIT 1`
		args = nil
	}

	var info IndexInfo
	err := s.conn.QueryRow(ctx, query, args...).Scan(&info.ID, &info.Label, &info.SourceID, &info.Dim, &info.FaceCount, &info.IndexedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if id <= 0 {
			return nil, fmt.Errorf("no indexes stored: %w", faceindex.ErrNotFound)
		}
		return nil, fmt.Errorf("index %d: %w", id, faceindex.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ListIndexes returns every stored index, newest first.
func (s *Store) ListIndexes(ctx context.Context) ([]IndexInfo, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, label, source_id, dim, face_count, indexed_at
		FROM face_indexes ORDER BY indexed_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []IndexInfo
	for rows.Next() {
		var info IndexInfo
		if err := rows.Scan(&info.ID, &info.Label, &info.SourceID, &info.Dim, &info.FaceCount, &info.IndexedAt); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS face_records CASCADE;
		DROP TABLE IF EXISTS face_indexes CASCADE;
	`)
	return err
}
