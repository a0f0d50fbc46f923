package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yyup/kindergarten-engine/pkg/database"
	"github.com/yyup/kindergarten-engine/pkg/models"
)

// ModelRepository persists model descriptors. Model configuration is
// shared across kindergartens, so it reads from the pool directly
// rather than a tenant scope.
type ModelRepository struct {
	db *database.DB
}

func NewModelRepository(db *database.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

func (r *ModelRepository) ListModels(ctx context.Context) ([]*models.ModelDescriptor, error) {
	query := `
		SELECT id, name, provider, endpoint, capabilities,
		       priority, active, max_tokens, registered_at
		FROM ai_models
		ORDER BY registered_at ASC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var descriptors []*models.ModelDescriptor
	for rows.Next() {
		var d models.ModelDescriptor
		err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Provider,
			&d.Endpoint,
			&d.Capabilities,
			&d.Priority,
			&d.Active,
			&d.MaxTokens,
			&d.RegisteredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model descriptor: %w", err)
		}
		descriptors = append(descriptors, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model descriptors: %w", err)
	}

	return descriptors, nil
}

func (r *ModelRepository) UpsertModel(ctx context.Context, descriptor *models.ModelDescriptor) error {
	query := `
		INSERT INTO ai_models (
			id, name, provider, endpoint, capabilities,
			priority, active, max_tokens, registered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			endpoint = EXCLUDED.endpoint,
			capabilities = EXCLUDED.capabilities,
			priority = EXCLUDED.priority,
			active = EXCLUDED.active,
			max_tokens = EXCLUDED.max_tokens`

	_, err := r.db.Pool.Exec(ctx, query,
		descriptor.ID,
		descriptor.Name,
		descriptor.Provider,
		descriptor.Endpoint,
		descriptor.Capabilities,
		descriptor.Priority,
		descriptor.Active,
		descriptor.MaxTokens,
		descriptor.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert model %s: %w", descriptor.Name, err)
	}

	return nil
}

func (r *ModelRepository) SetModelActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE ai_models SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update model active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("model %s not found", id)
	}
	return nil
}
