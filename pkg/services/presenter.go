package services

import (
	"sort"
	"strings"
	"time"

	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/schema"
	sqlguard "github.com/yyup/kindergarten-engine/pkg/sql"
)

// ResultPresenter shapes raw rows into a renderable result: typed
// column metadata, readable labels, and a visualization hint.
type ResultPresenter interface {
	Present(sqlText string, rows *QueryRows) *models.DataQueryResult
}

type resultPresenter struct{}

var _ ResultPresenter = (*resultPresenter)(nil)

func NewResultPresenter() ResultPresenter {
	return &resultPresenter{}
}

func (p *resultPresenter) Present(sqlText string, rows *QueryRows) *models.DataQueryResult {
	columns := p.columnInfo(sqlText, rows.Rows)

	return &models.DataQueryResult{
		SQL:           sqlText,
		Rows:          rows.Rows,
		Columns:       columns,
		RowCount:      len(rows.Rows),
		Truncated:     rows.Truncated,
		Visualization: pickVisualization(columns, len(rows.Rows)),
	}
}

// columnInfo prefers the SELECT list's column order and aliases. When
// the statement is unparseable (SELECT *), it falls back to the sorted
// keys of the first row.
func (p *resultPresenter) columnInfo(sqlText string, rows []map[string]any) []models.ColumnInfo {
	var names []string
	if parsed, err := sqlguard.ParseSelectColumns(sqlText); err == nil && len(parsed) > 0 {
		for _, col := range parsed {
			names = append(names, col.Name)
		}
	} else if len(rows) > 0 {
		for name := range rows[0] {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	columns := make([]models.ColumnInfo, 0, len(names))
	for _, name := range names {
		columns = append(columns, models.ColumnInfo{
			Name:  name,
			Label: columnLabel(name),
			Type:  inferColumnType(name, rows),
		})
	}
	return columns
}

// columnLabel turns snake_case into a readable label, keeping the
// singularized entity form for names that look like table references.
func columnLabel(name string) string {
	label := schema.EntityLabel(strings.ToLower(name))
	if label == "" {
		return name
	}
	words := strings.Fields(label)
	for i, w := range words {
		if w == "id" {
			words[i] = "ID"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func inferColumnType(name string, rows []map[string]any) string {
	for _, row := range rows {
		value, ok := row[name]
		if !ok || value == nil {
			continue
		}
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return "number"
		case bool:
			return "boolean"
		case time.Time:
			return "date"
		default:
			return "string"
		}
	}

	// No non-null value seen; guess from the name.
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "_at") || strings.Contains(lower, "date") || strings.Contains(lower, "time"):
		return "date"
	case strings.Contains(lower, "count") || strings.Contains(lower, "total") || strings.HasSuffix(lower, "_id") || lower == "id":
		return "number"
	default:
		return "string"
	}
}

// pickVisualization chooses how the UI should render the result.
// A date series takes a line chart, small categorical breakdowns take a
// pie, larger ones a bar, everything else a table.
func pickVisualization(columns []models.ColumnInfo, rowCount int) string {
	if rowCount <= 1 || len(columns) != 2 {
		return "table"
	}

	var hasDate, hasNumber, hasString bool
	for _, col := range columns {
		switch col.Type {
		case "date":
			hasDate = true
		case "number":
			hasNumber = true
		case "string":
			hasString = true
		}
	}

	switch {
	case hasDate && hasNumber:
		return "line"
	case hasString && hasNumber && rowCount <= 8:
		return "pie"
	case hasString && hasNumber:
		return "bar"
	default:
		return "table"
	}
}
