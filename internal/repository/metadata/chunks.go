package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/epirag/epirag/internal/domain"
)

// Chunks returns the full chunk corpus, ordered by chunk id. Used for
// lexical index builds and for the embedding pipeline.
func (s *Store) Chunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, section, text, char_count
		FROM chunks
		ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var section string
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &section, &c.Text, &c.CharCount); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Section = domain.Section(section)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

// ChunkTexts hydrates the raw text of the given chunk ids for API
// responses. Unknown ids are simply absent from the result.
func (s *Store) ChunkTexts(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, text FROM chunks WHERE chunk_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("query chunk texts: %w", err)
	}
	defer rows.Close()

	texts := make(map[string]string, len(ids))
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scan chunk text: %w", err)
		}
		texts[id] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk texts: %w", err)
	}
	return texts, nil
}

// DocumentInfo returns the (country, disease) attribution of a document
// for payload enrichment. A missing document maps to domain.ErrNotFound.
func (s *Store) DocumentInfo(ctx context.Context, documentID string) (country, disease string, err error) {
	var c, d sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT country, disease FROM documents WHERE document_id = ?", documentID).Scan(&c, &d)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("query document info: %w", err)
	}
	return c.String, d.String, nil
}
