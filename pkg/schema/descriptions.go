package schema

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

// tableDescriptions carries curated one-line summaries used in SQL
// generation prompts. Tables absent here still get a derived label.
var tableDescriptions = map[string]string{
	"students":                 "Enrolled children: name, gender, birth date, class assignment, enrollment status",
	"teachers":                 "Teaching staff: name, contact info, qualification, assigned classes",
	"parents":                  "Parent accounts: name, phone, relation to students",
	"classes":                  "Class groups: name, grade level, capacity, homeroom teacher",
	"kindergartens":            "Kindergarten campuses: name, address, contact, capacity",
	"activities":               "Planned activities and events: title, type, start and end dates, location, capacity",
	"activity_registrations":   "Sign-ups linking students to activities, with registration time and status",
	"activity_evaluations":     "Post-activity feedback and scores from teachers and parents",
	"activity_plans":           "Teaching plans attached to activities",
	"schedules":                "Daily and weekly timetables for classes and teachers",
	"todos":                    "Task items assigned to staff",
	"notifications":            "Messages sent to parents and staff",
	"parent_student_relations": "Links between parent accounts and students",
	"enrollment_applications":  "Admission applications and their review status",
	"attendance_records":       "Daily attendance per student",
	"fee_records":              "Tuition and activity fee payments",
	"class_assignments":        "Teacher to class assignments",
}

// KnownTables returns every table with a curated description, sorted.
// Wildcard roles enumerate these instead of an explicit allow-list.
func KnownTables() []string {
	names := make([]string, 0, len(tableDescriptions))
	for t := range tableDescriptions {
		names = append(names, t)
	}
	sort.Strings(names)
	return names
}

// EntityLabel derives a human-readable singular label from a table name,
// e.g. "activity_registrations" becomes "activity registration".
func EntityLabel(table string) string {
	return inflection.Singular(strings.ReplaceAll(table, "_", " "))
}

// DescribeTable returns the curated description for a table, or a derived
// fallback for tables without one.
func DescribeTable(table string) string {
	if desc, ok := tableDescriptions[table]; ok {
		return desc
	}
	return EntityLabel(table) + " records"
}
