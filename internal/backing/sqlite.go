package backing

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// documentName is the row that holds the repository document.
const documentName = "repository"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    name TEXT PRIMARY KEY,
    body BLOB NOT NULL,
    updated_at TEXT NOT NULL
);
`

// SQLite stores the document as a row of a documents table.
type SQLite struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path and ensures
// the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite backing requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{path: path, db: db}, nil
}

func (s *SQLite) Name() string { return "sqlite:" + s.path }

func (s *SQLite) Read() ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(`SELECT body FROM documents WHERE name = ?`, documentName).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return body, nil
}

func (s *SQLite) Write(data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		documentName, data, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
