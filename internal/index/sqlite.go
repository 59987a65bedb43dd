package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Hit is a chunk returned by a similarity search.
type Hit struct {
	Chunk
	Score float64
}

type entry struct {
	chunk  Chunk
	vector []float64
	norm   float64
}

// SQLiteStore persists chunks and their vectors in a SQLite file and serves
// searches from an in-memory snapshot. Replace swaps the snapshot only after
// the new rows are committed, so readers see either the old or the new index.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	entries []entry
}

// Create opens the index file at path for writing, creating it and its
// directory when needed. The current rows, if any, are loaded.
func Create(ctx context.Context, path string, log *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	s, err := open(ctx, path, log)
	if err != nil {
		return nil, err
	}

	if err := s.Reload(ctx); err != nil && !errors.Is(err, ErrUnavailable) {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Load opens an existing index for querying. A missing file, or one holding
// no chunks, yields an error wrapping ErrUnavailable.
func Load(ctx context.Context, path string, log *zap.Logger) (*SQLiteStore, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnavailable, path)
	}

	s, err := open(ctx, path, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := s.Reload(ctx); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func open(ctx context.Context, path string, log *zap.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init index schema %s: %w", path, err)
	}

	return &SQLiteStore{db: db, path: path, logger: log}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS chunks (
		position     INTEGER PRIMARY KEY,
		id           TEXT NOT NULL,
		unique_id    TEXT NOT NULL,
		name         TEXT NOT NULL,
		designation  TEXT NOT NULL,
		seq          INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset   INTEGER NOT NULL,
		text         TEXT NOT NULL,
		embedding    BLOB NOT NULL
	)`)
	return err
}

// Replace stores chunks with their vectors, discarding the previous index.
func (s *SQLiteStore) Replace(ctx context.Context, chunks []Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(position, id, unique_id, name, designation, seq, start_offset, end_offset, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	entries := make([]entry, 0, len(chunks))
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, i, c.ID, c.UniqueID, c.Name, c.Designation, c.Seq, c.Start, c.End, c.Text, encodeVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
		entries = append(entries, newEntry(c, vectors[i]))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info("index replaced", zap.String("path", s.path), zap.Int("chunks", len(entries)))
	return nil
}

// Reload refreshes the in-memory snapshot from the file.
func (s *SQLiteStore) Reload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, unique_id, name, designation, seq, start_offset, end_offset, text, embedding
		FROM chunks ORDER BY position`)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var (
			c    Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.UniqueID, &c.Name, &c.Designation, &c.Seq, &c.Start, &c.End, &c.Text, &blob); err != nil {
			return fmt.Errorf("%w: scan %s: %v", ErrUnavailable, s.path, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("%w: chunk %s: %v", ErrUnavailable, c.ID, err)
		}
		entries = append(entries, newEntry(c, vec))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.path, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	if len(entries) == 0 {
		return fmt.Errorf("%w: %s holds no chunks", ErrUnavailable, s.path)
	}

	s.logger.Debug("index loaded", zap.String("path", s.path), zap.Int("chunks", len(entries)))
	return nil
}

// Search returns up to k chunks ranked by cosine similarity to vec. Ties keep
// index order.
func (s *SQLiteStore) Search(_ context.Context, vec []float64, k int) ([]Hit, error) {
	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s holds no chunks", ErrUnavailable, s.path)
	}
	if k <= 0 || len(vec) == 0 {
		return nil, nil
	}

	qnorm := vectorNorm(vec)
	hits := make([]Hit, 0, len(entries))
	for _, e := range entries {
		if len(e.vector) != len(vec) {
			return nil, fmt.Errorf("query vector has %d dimensions, index has %d", len(vec), len(e.vector))
		}
		hits = append(hits, Hit{Chunk: e.chunk, Score: cosine(vec, qnorm, e.vector, e.norm)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	return hits, nil
}

// Len returns the number of chunks in the current snapshot.
func (s *SQLiteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func newEntry(c Chunk, vec []float64) entry {
	return entry{chunk: c, vector: vec, norm: vectorNorm(vec)}
}

func vectorNorm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosine(a []float64, anorm float64, b []float64, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (anorm * bnorm)
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 8", len(buf))
	}
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v, nil
}
