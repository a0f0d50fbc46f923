package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/models"
)

func TestAllowedTablesForRole(t *testing.T) {
	tests := []struct {
		role    string
		table   string
		allowed bool
	}{
		{models.RoleAdmin, "fee_records", true},
		{models.RoleAdmin, "anything_at_all", true},
		{models.RolePrincipal, "fee_records", true},
		{models.RolePrincipal, "nonexistent", false},
		{models.RoleTeacher, "students", true},
		{models.RoleTeacher, "fee_records", false},
		{models.RoleParent, "teachers", true},
		{models.RoleParent, "todos", false},
		{"", "students", true},
		{"", "notifications", false},
		{"visitor", "activities", true},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.table, func(t *testing.T) {
			got := AllowedTablesForRole(tt.role).Contains(tt.table)
			assert.Equal(t, tt.allowed, got)
		})
	}
}

// Widening a role must never remove access: each role's list is a subset of
// the next one up.
func TestAllowlists_MonotonicInPrivilege(t *testing.T) {
	for _, table := range parentTables.Names() {
		assert.True(t, principalTables.Contains(table),
			"principal should see parent table %q", table)
	}
	for _, table := range teacherTables.Names() {
		assert.True(t, principalTables.Contains(table),
			"principal should see teacher table %q", table)
	}
	for _, table := range defaultTables.Names() {
		assert.True(t, teacherTables.Contains(table))
		assert.True(t, parentTables.Contains(table))
	}
}

func TestIntersect(t *testing.T) {
	set := NewAllowedTableSet("students", "classes")

	assert.Equal(t, []string{"students"}, set.Intersect([]string{"students", "fee_records"}))
	assert.Nil(t, set.Intersect([]string{"fee_records"}))
	assert.Equal(t, []string{"classes", "students"}, set.Intersect([]string{"classes", "students"}))
}

func TestSchemaFor(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(nil, zap.NewNop())

	t.Run("describes visible tables", func(t *testing.T) {
		desc, visible, err := g.SchemaFor(ctx, models.RoleTeacher, []string{"students", "classes"})
		require.NoError(t, err)
		assert.Equal(t, []string{"students", "classes"}, visible)
		assert.Contains(t, desc, "Table students:")
		assert.Contains(t, desc, "Table classes:")
	})

	t.Run("narrows to allowed subset", func(t *testing.T) {
		desc, visible, err := g.SchemaFor(ctx, models.RoleParent, []string{"students", "fee_records"})
		require.NoError(t, err)
		assert.Equal(t, []string{"students"}, visible)
		assert.NotContains(t, desc, "fee_records",
			"disallowed tables must not leak into the description")
	})

	t.Run("nothing visible", func(t *testing.T) {
		_, _, err := g.SchemaFor(ctx, models.RoleParent, []string{"fee_records", "todos"})
		assert.ErrorIs(t, err, apperrors.ErrTableNotAllowed)
	})
}

func TestTablesReferencedBy(t *testing.T) {
	g := NewGateway(nil, zap.NewNop())

	tables := g.TablesReferencedBy(
		"SELECT s.name FROM students s JOIN activity_registrations r ON r.student_id = s.id")
	assert.Equal(t, []string{"students", "activity_registrations"}, tables)
}

func TestValidateTables(t *testing.T) {
	g := NewGateway(nil, zap.NewNop())

	assert.NoError(t, g.ValidateTables(models.RoleTeacher, []string{"students", "schedules"}))
	assert.ErrorIs(t, g.ValidateTables(models.RoleTeacher, []string{"students", "fee_records"}),
		apperrors.ErrTableNotAllowed)
	assert.NoError(t, g.ValidateTables(models.RoleAdmin, []string{"fee_records", "whatever"}))
}

// Statements that disguise a table reference behind identifier quoting
// or a comma-separated FROM list must still fail role validation.
func TestValidateTables_SeesDisguisedReferences(t *testing.T) {
	g := NewGateway(nil, zap.NewNop())

	tests := []struct {
		name string
		sql  string
	}{
		{"quoted identifier", `SELECT * FROM "fee_records"`},
		{"comma-separated from list", "SELECT s.name, f.amount FROM students s, fee_records f WHERE f.student_id = s.id"},
		{"schema qualified", "SELECT * FROM public.fee_records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := g.TablesReferencedBy(tt.sql)
			assert.Contains(t, tables, "fee_records")
			assert.ErrorIs(t, g.ValidateTables(models.RoleTeacher, tables),
				apperrors.ErrTableNotAllowed)
		})
	}
}

func TestEntityLabel(t *testing.T) {
	assert.Equal(t, "student", EntityLabel("students"))
	assert.Equal(t, "activity registration", EntityLabel("activity_registrations"))
	assert.Equal(t, "class", EntityLabel("classes"))
}

func TestDescribeTable_Fallback(t *testing.T) {
	desc := DescribeTable("meal_plans")
	assert.True(t, strings.HasSuffix(desc, "records"), "got %q", desc)
}
