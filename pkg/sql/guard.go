package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotSelect indicates the statement is not a SELECT query.
	ErrNotSelect = errors.New("only SELECT statements are permitted")
)

// dangerousPattern matches write or DDL keywords anywhere in the statement.
// Generated SQL must never mutate data, regardless of what the model was told.
var dangerousPattern = regexp.MustCompile(`(?i)\b(DROP|DELETE|UPDATE|INSERT|CREATE|ALTER|TRUNCATE|GRANT|REVOKE|EXEC|EXECUTE|DECLARE)\b`)

// listStoppers end a FROM table list. A bare word after a table name is
// treated as an alias unless it is one of these.
var listStoppers = map[string]bool{
	"where": true, "group": true, "order": true, "having": true,
	"limit": true, "offset": true, "union": true, "intersect": true,
	"except": true, "on": true, "using": true, "join": true,
	"inner": true, "left": true, "right": true, "full": true,
	"cross": true, "natural": true, "window": true, "for": true,
	"fetch": true, "returning": true,
}

// refPrefixes may precede a table reference inside a FROM clause.
var refPrefixes = map[string]bool{
	"only": true, "lateral": true,
}

// EnsureReadOnlySelect verifies the statement is a single read-only SELECT.
// The input should already be normalized by ValidateAndNormalize.
func EnsureReadOnlySelect(sqlQuery string) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return ErrNotSelect
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return ErrNotSelect
	}

	if match := dangerousPattern.FindString(trimmed); match != "" {
		return fmt.Errorf("forbidden keyword %q in statement: %w", strings.ToUpper(match), ErrNotSelect)
	}

	return nil
}

// ExtractTableNames returns every table referenced after FROM or JOIN,
// lowercased and deduplicated, in order of first appearance.
//
// The extraction is deliberately conservative: anything that looks like a
// table reference counts as one, so allow-list checks err toward denial.
// It tokenizes rather than pattern-matches so that quoted identifiers,
// comma-separated FROM lists, schema qualification, and subqueries are
// all accounted for. A quoted name is recorded with its exact (folded)
// spelling, so anything not on an allow-list still fails validation.
func ExtractTableNames(sqlQuery string) []string {
	e := &tableExtractor{toks: lexTableTokens(sqlQuery), seen: make(map[string]bool)}
	e.scan(0, len(e.toks))
	return e.tables
}

type tableTokenKind int

const (
	tokWord tableTokenKind = iota
	tokQuoted
	tokComma
	tokDot
	tokLParen
	tokRParen
	tokOther
)

type tableToken struct {
	kind tableTokenKind
	text string
}

// lexTableTokens produces the token stream ExtractTableNames walks.
// String literals and comments are consumed so their contents cannot
// look like clause keywords.
func lexTableTokens(s string) []tableToken {
	var toks []tableToken
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			i = skipQuoted(s, i, '\'')
		case c == '"':
			j := i + 1
			start := j
			for j < len(s) && s[j] != '"' {
				j++
			}
			toks = append(toks, tableToken{tokQuoted, s[start:j]})
			i = j + 1
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i += 2
		case c == ',':
			toks = append(toks, tableToken{tokComma, ","})
			i++
		case c == '.':
			toks = append(toks, tableToken{tokDot, "."})
			i++
		case c == '(':
			toks = append(toks, tableToken{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, tableToken{tokRParen, ")"})
			i++
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			j := i
			for j < len(s) && (s[j] == '_' || s[j] == '$' ||
				(s[j] >= 'a' && s[j] <= 'z') || (s[j] >= 'A' && s[j] <= 'Z') ||
				(s[j] >= '0' && s[j] <= '9')) {
				j++
			}
			toks = append(toks, tableToken{tokWord, s[i:j]})
			i = j
		default:
			toks = append(toks, tableToken{tokOther, string(c)})
			i++
		}
	}
	return toks
}

// skipQuoted advances past a quoted region starting at i, honoring the
// doubled-quote escape.
func skipQuoted(s string, i int, quote byte) int {
	i++
	for i < len(s) {
		if s[i] != quote {
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i += 2
			continue
		}
		return i + 1
	}
	return i
}

type tableExtractor struct {
	toks   []tableToken
	seen   map[string]bool
	tables []string
}

func (e *tableExtractor) add(name string) {
	if name == "" || e.seen[name] {
		return
	}
	e.seen[name] = true
	e.tables = append(e.tables, name)
}

// scan walks [i, end) looking for FROM and JOIN clauses, descending into
// parenthesized groups so subquery clauses are covered too.
func (e *tableExtractor) scan(i, end int) {
	for i < end {
		t := e.toks[i]
		switch {
		case t.kind == tokLParen:
			j := e.matching(i, end)
			e.scan(i+1, j)
			i = j + 1
		case t.kind == tokWord && strings.EqualFold(t.text, "from"):
			i = e.tableList(i+1, end, true)
		case t.kind == tokWord && strings.EqualFold(t.text, "join"):
			i = e.tableList(i+1, end, false)
		default:
			i++
		}
	}
}

// tableList consumes one table reference, its optional alias, and, for
// FROM clauses, comma-separated continuations. Returns the index where
// the list ended.
func (e *tableExtractor) tableList(i, end int, allowComma bool) int {
	for {
		for i < end && e.toks[i].kind == tokWord && refPrefixes[strings.ToLower(e.toks[i].text)] {
			i++
		}
		if i >= end {
			return i
		}

		switch t := e.toks[i]; t.kind {
		case tokLParen:
			j := e.matching(i, end)
			e.scan(i+1, j)
			i = j + 1
		case tokWord, tokQuoted:
			if t.kind == tokWord && listStoppers[strings.ToLower(t.text)] {
				return i
			}
			name := strings.ToLower(t.text)
			i++
			// Qualified reference: the last segment names the table.
			for i+1 < end && e.toks[i].kind == tokDot &&
				(e.toks[i+1].kind == tokWord || e.toks[i+1].kind == tokQuoted) {
				name = strings.ToLower(e.toks[i+1].text)
				i += 2
			}
			e.add(name)
		default:
			return i
		}

		// Optional alias.
		if i < end && e.toks[i].kind == tokWord && strings.EqualFold(e.toks[i].text, "as") {
			i++
		}
		if i < end && e.toks[i].kind == tokWord && !listStoppers[strings.ToLower(e.toks[i].text)] {
			i++
		}

		if !allowComma || i >= end || e.toks[i].kind != tokComma {
			return i
		}
		i++
	}
}

// matching returns the index of the parenthesis closing the one at i,
// or end when the statement is unbalanced.
func (e *tableExtractor) matching(i, end int) int {
	depth := 0
	for j := i; j < end; j++ {
		switch e.toks[j].kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return end
}
