// Package metadata is the sqlite-backed corpus store. It owns the
// documents and chunks tables written by the ingestion pipeline and the
// ingestion_logs table used as the observability sink. The retrieval
// core only reads from it.
//
// The driver is modernc.org/sqlite, a pure Go SQLite implementation, so
// the binary builds without cgo.
package metadata

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	document_id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	file_path TEXT NOT NULL,
	country TEXT,
	disease TEXT,
	ingestion_status TEXT NOT NULL DEFAULT 'accepted',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	section TEXT NOT NULL,
	text TEXT NOT NULL,
	char_count INTEGER NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (document_id) REFERENCES documents(document_id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_section ON chunks(section);

CREATE TABLE IF NOT EXISTS ingestion_logs (
	log_id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id TEXT,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps the metadata database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the metadata database and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init metadata schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping metadata db: %w", err)
	}
	return nil
}
