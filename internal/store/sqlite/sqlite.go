package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tradeshare/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, name string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: loading %s: %w", name, err)
	}
	return body, true, nil
}

func (s *Store) Save(ctx context.Context, name string, body []byte) error {
	if err := store.ValidateName(name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (name, body, size, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name)
		DO UPDATE SET
			body = excluded.body,
			size = excluded.size,
			updated_at = excluded.updated_at
	`, name, body, len(body), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: saving %s: %w", name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, name); err != nil {
		return fmt.Errorf("sqlite: deleting %s: %w", name, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, size, updated_at FROM documents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing documents: %w", err)
	}
	defer rows.Close()

	var entries []store.Entry
	for rows.Next() {
		var (
			entry   store.Entry
			updated string
		)
		if err := rows.Scan(&entry.Name, &entry.Size, &updated); err != nil {
			return nil, fmt.Errorf("sqlite: scanning document: %w", err)
		}
		entry.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			body BLOB NOT NULL,
			size INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}

	return nil
}

var _ store.Store = (*Store)(nil)
