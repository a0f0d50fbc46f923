package services

import (
	"context"

	"github.com/yyup/kindergarten-engine/pkg/models"
)

// RecordWriter persists query records. A nil writer disables record
// keeping, which the pipeline treats as best-effort anyway.
type RecordWriter interface {
	Create(ctx context.Context, record *models.QueryRecord) error
}
