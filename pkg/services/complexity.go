package services

import (
	"strings"
)

// ComplexityScore is the outcome of the deterministic complexity scan.
// Score grows with query length, missing or stacked keywords, and
// analysis markers; EstimatedTokens approximates a full model call.
type ComplexityScore struct {
	Score           int
	EstimatedTokens int
	MatchedKeywords []string
}

// Keyword groups for the complexity scan. Matching is substring-based so
// inflected forms ("counting", "students") still hit.
var (
	actionKeywords = map[string][]string{
		"create":  {"add", "create", "register", "enroll", "record"},
		"read":    {"show", "list", "view", "find", "search", "get", "query"},
		"update":  {"update", "change", "edit", "modify", "adjust"},
		"delete":  {"delete", "remove", "cancel", "clear"},
		"count":   {"count", "how many", "number of", "total", "sum"},
		"analyze": {"analyze", "analyse", "report", "trend", "predict", "evaluate"},
	}

	entityKeywords = map[string][]string{
		"student":    {"student", "child", "children", "kid"},
		"teacher":    {"teacher", "staff", "instructor"},
		"class":      {"class", "grade", "group"},
		"activity":   {"activity", "event", "course", "game"},
		"parent":     {"parent", "guardian", "family"},
		"attendance": {"attendance", "check-in", "absent", "present"},
		"fee":        {"fee", "tuition", "payment", "bill", "invoice"},
		"schedule":   {"schedule", "timetable", "plan", "calendar"},
		"health":     {"health", "vaccine", "checkup", "height", "weight"},
		"enrollment": {"enrollment", "admission", "application", "signup"},
	}

	modifierKeywords = []string{
		"today", "yesterday", "tomorrow", "this week", "this month",
		"this year", "active", "completed", "pending", "cancelled",
	}

	analysisMarkers   = []string{"analyze", "analyse", "report", "recommend", "suggest"}
	comparisonMarkers = []string{"compare", "versus", " vs ", "trend", "over time"}
	reasoningMarkers  = []string{"why", "how do", "how can", "explain"}
)

// EvaluateComplexity scores a query deterministically, without a model
// call. Higher scores mean the query needs the full pipeline.
func EvaluateComplexity(queryText string) ComplexityScore {
	text := strings.ToLower(strings.TrimSpace(queryText))
	words := strings.Fields(text)

	var matched []string

	actionCount := 0
	for actionType, keywords := range actionKeywords {
		if containsAny(text, keywords) {
			matched = append(matched, "action:"+actionType)
			actionCount++
		}
	}

	entityCount := 0
	for entityType, keywords := range entityKeywords {
		if containsAny(text, keywords) {
			matched = append(matched, "entity:"+entityType)
			entityCount++
		}
	}

	modifierCount := 0
	for _, keyword := range modifierKeywords {
		if strings.Contains(text, keyword) {
			matched = append(matched, "modifier:"+keyword)
			modifierCount++
		}
	}

	score := 0

	// Length
	if len(words) > 8 {
		score++
	}
	if len(words) > 16 {
		score++
	}

	// Action structure
	if actionCount == 0 {
		score += 2
	}
	if actionCount > 1 {
		score++
	}

	// Entity structure
	if entityCount == 0 {
		score++
	}
	if entityCount > 2 {
		score++
	}

	if modifierCount > 2 {
		score++
	}

	// Markers that imply reasoning beyond a lookup
	if containsAny(text, analysisMarkers) {
		score += 3
	}
	if containsAny(text, comparisonMarkers) {
		score += 2
	}
	if containsAny(text, reasoningMarkers) {
		score++
	}

	estimated := 100 + len(words)*5 + len(matched)*20 + score*150

	return ComplexityScore{
		Score:           score,
		EstimatedTokens: estimated,
		MatchedKeywords: matched,
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
