package repositories

import (
	"context"
	"fmt"

	"github.com/yyup/kindergarten-engine/pkg/database"
	"github.com/yyup/kindergarten-engine/pkg/semantic"
)

// DocumentRepository persists the semantic answer corpus. Documents are
// curated per deployment, not per kindergarten, so it reads from the
// pool directly.
type DocumentRepository struct {
	db *database.DB
}

func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

var _ semantic.DocumentStore = (*DocumentRepository)(nil)

func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*semantic.Document, error) {
	query := `
		SELECT id, title, content, embedding, created_at
		FROM ai_documents
		ORDER BY created_at ASC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*semantic.Document
	for rows.Next() {
		var doc semantic.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Embedding, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

func (r *DocumentRepository) UpsertDocument(ctx context.Context, doc *semantic.Document) error {
	query := `
		INSERT INTO ai_documents (id, title, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`

	_, err := r.db.Pool.Exec(ctx, query, doc.ID, doc.Title, doc.Content, doc.Embedding, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}
