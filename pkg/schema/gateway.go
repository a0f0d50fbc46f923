package schema

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/database"
	sqlguard "github.com/yyup/kindergarten-engine/pkg/sql"
)

// SchemaGateway answers three questions: what may this role see, what does
// the visible part of the schema look like, and what does a piece of SQL
// actually touch.
type SchemaGateway interface {
	// AllowedTables returns the allow-list for a role.
	AllowedTables(role string) AllowedTableSet

	// SchemaFor describes the requested tables, restricted to what the
	// role may see. The returned slice is the subset that survived the
	// intersection. Returns apperrors.ErrTableNotAllowed when nothing
	// survives.
	SchemaFor(ctx context.Context, role string, requested []string) (string, []string, error)

	// TablesReferencedBy extracts every table a SQL statement touches.
	// Unparseable references count as touched, so checks err toward
	// denial.
	TablesReferencedBy(sqlQuery string) []string

	// ValidateTables verifies every table is allowed for the role.
	ValidateTables(role string, tables []string) error
}

type schemaGateway struct {
	db     *database.DB // nil when live introspection is unavailable
	logger *zap.Logger
}

// NewGateway creates a SchemaGateway. db may be nil; descriptions then come
// from the curated metadata only.
func NewGateway(db *database.DB, logger *zap.Logger) SchemaGateway {
	return &schemaGateway{
		db:     db,
		logger: logger.Named("schema"),
	}
}

func (g *schemaGateway) AllowedTables(role string) AllowedTableSet {
	return AllowedTablesForRole(role)
}

func (g *schemaGateway) SchemaFor(ctx context.Context, role string, requested []string) (string, []string, error) {
	allowed := AllowedTablesForRole(role)

	visible := allowed.Intersect(requested)
	if len(visible) == 0 {
		return "", nil, fmt.Errorf("role %q may not access any of %v: %w",
			role, requested, apperrors.ErrTableNotAllowed)
	}
	if len(visible) < len(requested) {
		g.logger.Debug("schema request narrowed by role",
			zap.String("role", role),
			zap.Strings("requested", requested),
			zap.Strings("visible", visible))
	}

	columns, err := g.introspect(ctx, visible)
	if err != nil {
		// Introspection is best-effort; curated descriptions still work.
		g.logger.Warn("schema introspection failed", zap.Error(err))
		columns = nil
	}

	var b strings.Builder
	for _, table := range visible {
		fmt.Fprintf(&b, "Table %s: %s\n", table, DescribeTable(table))
		if cols := columns[table]; len(cols) > 0 {
			fmt.Fprintf(&b, "  Columns: %s\n", strings.Join(cols, ", "))
		}
	}
	return b.String(), visible, nil
}

func (g *schemaGateway) TablesReferencedBy(sqlQuery string) []string {
	return sqlguard.ExtractTableNames(sqlQuery)
}

func (g *schemaGateway) ValidateTables(role string, tables []string) error {
	allowed := AllowedTablesForRole(role)
	for _, t := range tables {
		if !allowed.Contains(t) {
			return fmt.Errorf("table %q for role %q: %w", t, role, apperrors.ErrTableNotAllowed)
		}
	}
	return nil
}

// introspect loads column names and types from information_schema for the
// given tables. Returns table -> "name type" strings.
func (g *schemaGateway) introspect(ctx context.Context, tables []string) (map[string][]string, error) {
	if g.db == nil {
		return nil, nil
	}

	rows, err := g.db.Query(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = ANY($1)
		ORDER BY table_name, ordinal_position`, tables)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer rows.Close()

	columns := make(map[string][]string)
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		columns[table] = append(columns[table], column+" "+dataType)
	}
	return columns, rows.Err()
}

// Ensure schemaGateway implements SchemaGateway at compile time.
var _ SchemaGateway = (*schemaGateway)(nil)
