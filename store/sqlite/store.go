// Package sqlite keeps the population in a SQLite database, ranking with SQL
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"

	_ "modernc.org/sqlite"
)

var noPathErr = errors.New("sqlite path is required")

var schema = []string{`
CREATE TABLE IF NOT EXISTS hash_functions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	father     INTEGER NOT NULL DEFAULT 0,
	mother     INTEGER NOT NULL DEFAULT 0,
	generation INTEGER NOT NULL DEFAULT 0,
	tested     INTEGER NOT NULL DEFAULT 0,
	collisions REAL,
	p1         REAL,
	p2         REAL,
	payload    BLOB NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS hash_functions_tested ON hash_functions (tested, id)`,
}

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// New creates store over the database file; ":memory:" keeps it in RAM
func New(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return noPathErr
	}
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// a single connection serializes writes and keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return err
		}
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, store.ErrClosed
	}
	return s.db, nil
}

func fitnessColumns(hf lsh.HashFunction) (tested int, collisions, p1, p2 sql.NullFloat64) {
	f := hf.Fitness()
	if c, ok := f.Collisions(); ok {
		tested = 1
		collisions = sql.NullFloat64{Float64: c, Valid: true}
	}
	if a, b, ok := f.NearFar(); ok {
		p1 = sql.NullFloat64{Float64: a, Valid: true}
		p2 = sql.NullFloat64{Float64: b, Valid: true}
	}
	return tested, collisions, p1, p2
}

func (s *SQLiteStore) Create(ctx context.Context, hf lsh.HashFunction) (lsh.ID, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	payload, err := store.Encode(hf)
	if err != nil {
		return 0, err
	}
	tested, collisions, p1, p2 := fitnessColumns(hf)
	res, err := db.ExecContext(ctx, `
		INSERT INTO hash_functions (father, mother, generation, tested, collisions, p1, p2, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, int64(hf.Father), int64(hf.Mother), hf.Generation, tested, collisions, p1, p2, payload)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return lsh.ID(id), nil
}

// decode restores hash function, the id and lineage columns win over the payload
func decode(id, father, mother int64, generation int, payload []byte) (lsh.HashFunction, error) {
	hf, err := store.Decode(payload)
	if err != nil {
		return lsh.HashFunction{}, fmt.Errorf("hash function %d: %w", id, err)
	}
	hf.ID = lsh.ID(id)
	hf.Father, hf.Mother, hf.Generation = lsh.ID(father), lsh.ID(mother), generation
	return hf, nil
}

const selectColumns = `SELECT id, father, mother, generation, payload FROM hash_functions`

func (s *SQLiteStore) query(ctx context.Context, q string, args ...interface{}) ([]lsh.HashFunction, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []lsh.HashFunction
	for rows.Next() {
		var (
			id, father, mother int64
			generation         int
			payload            []byte
		)
		if err := rows.Scan(&id, &father, &mother, &generation, &payload); err != nil {
			return nil, err
		}
		hf, err := decode(id, father, mother, generation, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, hf)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id lsh.ID) (lsh.HashFunction, error) {
	hfs, err := s.query(ctx, selectColumns+` WHERE id = ?`, int64(id))
	if err != nil {
		return lsh.HashFunction{}, err
	}
	if len(hfs) == 0 {
		return lsh.HashFunction{}, fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	return hfs[0], nil
}

// UpdateFitness never touches the lineage columns
func (s *SQLiteStore) UpdateFitness(ctx context.Context, hf lsh.HashFunction) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	payload, err := store.Encode(hf)
	if err != nil {
		return err
	}
	tested, collisions, p1, p2 := fitnessColumns(hf)
	res, err := db.ExecContext(ctx, `
		UPDATE hash_functions SET tested = ?, collisions = ?, p1 = ?, p2 = ?, payload = ?
		WHERE id = ?
	`, tested, collisions, p1, p2, payload, int64(hf.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", store.ErrNotFound, hf.ID)
	}
	return nil
}

func sqlLimit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

func (s *SQLiteStore) Untested(ctx context.Context, limit int) ([]lsh.HashFunction, error) {
	return s.query(ctx, selectColumns+` WHERE tested = 0 ORDER BY id LIMIT ?`, sqlLimit(limit))
}

func (s *SQLiteStore) Top(ctx context.Context, n int) ([]lsh.HashFunction, error) {
	return s.query(ctx, selectColumns+`
		WHERE p1 IS NOT NULL AND p2 IS NOT NULL
		ORDER BY p1 - p2 DESC, id ASC
		LIMIT ?`, sqlLimit(n))
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var count int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hash_functions`).Scan(&count)
	return count, err
}

// Scan reads the whole table before calling fn, so fn may use the store
func (s *SQLiteStore) Scan(ctx context.Context, fn func(lsh.HashFunction) error) error {
	hfs, err := s.query(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return err
	}
	for _, hf := range hfs {
		if err := fn(hf); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
