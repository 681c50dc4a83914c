package metadata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/epirag/epirag/internal/domain"
)

// Record appends one observability record to ingestion_logs. An empty
// documentID is stored as NULL, matching records not attributable to a
// single document.
func (s *Store) Record(ctx context.Context, documentID string, level domain.EventLevel, message string) error {
	var doc any
	if documentID != "" {
		doc = documentID
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ingestion_logs (document_id, level, message) VALUES (?, ?, ?)",
		doc, string(level), message)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// RecentEvents lists the newest records first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_id, document_id, level, message, created_at
		FROM ingestion_logs
		ORDER BY log_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var doc sql.NullString
		var level string
		if err := rows.Scan(&e.LogID, &doc, &level, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.DocumentID = doc.String
		e.Level = domain.EventLevel(level)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
