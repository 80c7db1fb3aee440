// Package storage persists user favorites, the service's one relational
// resource, in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starbrewcrew/brewfinder/internal/domain"
)

// Favorite is a saved coffee shop. IDs are numeric and assigned by the
// database.
type Favorite struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store wraps the SQLite favorites table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	const createTable = `
CREATE TABLE IF NOT EXISTS favorites (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := s.db.Exec(createTable); err != nil {
		return fmt.Errorf("ensure favorites schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// List returns all favorites, newest first.
func (s *Store) List(ctx context.Context) ([]Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, address, city, state, notes, created_at
FROM favorites ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favorites := []Favorite{}
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.Name, &f.Address, &f.City, &f.State, &f.Notes, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// Get returns one favorite by ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Favorite, error) {
	var f Favorite
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, address, city, state, notes, created_at
FROM favorites WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &f.Address, &f.City, &f.State, &f.Notes, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Favorite{}, fmt.Errorf("favorite %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return Favorite{}, fmt.Errorf("get favorite %d: %w", id, err)
	}
	return f, nil
}

// Create inserts a favorite and returns it with its assigned ID.
func (s *Store) Create(ctx context.Context, f Favorite) (Favorite, error) {
	if f.Name == "" {
		return Favorite{}, domain.Validationf("name is required")
	}

	result, err := s.db.ExecContext(ctx, `
INSERT INTO favorites (name, address, city, state, notes)
VALUES (?, ?, ?, ?, ?)`,
		f.Name, f.Address, f.City, f.State, f.Notes)
	if err != nil {
		return Favorite{}, fmt.Errorf("create favorite: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Favorite{}, fmt.Errorf("create favorite: %w", err)
	}
	return s.Get(ctx, id)
}

// Update replaces a favorite's mutable fields, or ErrNotFound.
func (s *Store) Update(ctx context.Context, id int64, f Favorite) (Favorite, error) {
	if f.Name == "" {
		return Favorite{}, domain.Validationf("name is required")
	}

	result, err := s.db.ExecContext(ctx, `
UPDATE favorites SET name = ?, address = ?, city = ?, state = ?, notes = ?
WHERE id = ?`,
		f.Name, f.Address, f.City, f.State, f.Notes, id)
	if err != nil {
		return Favorite{}, fmt.Errorf("update favorite %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Favorite{}, fmt.Errorf("update favorite %d: %w", id, err)
	}
	if affected == 0 {
		return Favorite{}, fmt.Errorf("favorite %d: %w", id, domain.ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Delete removes a favorite by ID, or ErrNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete favorite %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete favorite %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("favorite %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
