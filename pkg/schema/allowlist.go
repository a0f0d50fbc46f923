// Package schema mediates all access to business table metadata. Every table
// name that reaches SQL generation or execution passes through the role
// allow-lists defined here.
package schema

import (
	"sort"

	"github.com/yyup/kindergarten-engine/pkg/models"
)

// AllowedTableSet is the set of tables a role may query.
type AllowedTableSet struct {
	wildcard bool
	tables   map[string]bool
}

// NewAllowedTableSet builds a set from explicit table names.
func NewAllowedTableSet(tables ...string) AllowedTableSet {
	m := make(map[string]bool, len(tables))
	for _, t := range tables {
		m[t] = true
	}
	return AllowedTableSet{tables: m}
}

// AllTables is the wildcard set granted to admins.
var AllTables = AllowedTableSet{wildcard: true}

// Wildcard reports whether the set allows every table.
func (s AllowedTableSet) Wildcard() bool {
	return s.wildcard
}

// Contains reports whether the table is allowed.
func (s AllowedTableSet) Contains(table string) bool {
	if s.wildcard {
		return true
	}
	return s.tables[table]
}

// Intersect returns the subset of requested tables that are allowed,
// preserving request order.
func (s AllowedTableSet) Intersect(requested []string) []string {
	var out []string
	for _, t := range requested {
		if s.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// Names returns the allowed table names sorted. Empty for wildcard sets.
func (s AllowedTableSet) Names() []string {
	names := make([]string, 0, len(s.tables))
	for t := range s.tables {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

// Role allow-lists. Each step down the privilege ladder is a subset of the
// one above, so widening a role never removes access.
var (
	principalTables = NewAllowedTableSet(
		"students", "teachers", "parents", "classes", "kindergartens",
		"activities", "activity_registrations", "activity_evaluations",
		"activity_plans", "schedules", "todos", "notifications",
		"parent_student_relations", "enrollment_applications",
		"attendance_records", "fee_records", "class_assignments",
	)

	teacherTables = NewAllowedTableSet(
		"students", "classes", "activities", "activity_registrations",
		"activity_evaluations", "activity_plans", "schedules", "todos",
		"notifications", "parents", "parent_student_relations",
	)

	parentTables = NewAllowedTableSet(
		"students", "activities", "activity_registrations", "schedules",
		"notifications", "classes", "teachers",
	)

	// defaultTables covers unknown or missing roles: deny by default,
	// with only the most public data visible.
	defaultTables = NewAllowedTableSet("students", "activities")
)

// AllowedTablesForRole returns the allow-list for a role.
func AllowedTablesForRole(role string) AllowedTableSet {
	switch role {
	case models.RoleAdmin:
		return AllTables
	case models.RolePrincipal:
		return principalTables
	case models.RoleTeacher:
		return teacherTables
	case models.RoleParent:
		return parentTables
	default:
		return defaultTables
	}
}
