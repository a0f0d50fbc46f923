package services

import (
	"strings"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/models"
)

// DirectMatch is a canned answer for a high-frequency simple query.
type DirectMatch struct {
	Response string
	Action   string
	Tokens   int
}

// RouteDecision is the routing outcome for a chat query. The level is
// chosen once per request.
type RouteDecision struct {
	Level           models.ProcessingLevel
	Confidence      float64
	EstimatedTokens int
	Match           *DirectMatch // set when Level is direct
}

// QueryRouter assigns each chat query a processing level: direct for
// canned answers, semantic for corpus lookups, complex for the full
// model pipeline.
type QueryRouter interface {
	Route(queryText string) RouteDecision
	CheckDirectMatch(queryText string) *DirectMatch
}

type queryRouter struct {
	complexityThreshold int
	logger              *zap.Logger
}

var _ QueryRouter = (*queryRouter)(nil)

func NewQueryRouter(complexityThreshold int, logger *zap.Logger) QueryRouter {
	return &queryRouter{
		complexityThreshold: complexityThreshold,
		logger:              logger.Named("router"),
	}
}

// directMatches maps exact or contained phrases to canned responses.
// These answer in tens of tokens instead of a full model call. The
// deployed product is Chinese-first, so the dictionary carries the
// Chinese phrases with English equivalents alongside.
var directMatches = map[string]DirectMatch{
	"你好":                 {Response: "你好！我可以帮你查询学生、教师或活动信息。", Action: "greeting", Tokens: 10},
	"您好":                 {Response: "您好！我可以帮你查询学生、教师或活动信息。", Action: "greeting", Tokens: 10},
	"谢谢":                 {Response: "不客气！", Action: "acknowledgement", Tokens: 5},
	"再见":                 {Response: "再见！有需要随时找我。", Action: "acknowledgement", Tokens: 5},
	"学生总数":               {Response: "正在查询学生总数...", Action: "count_students", Tokens: 10},
	"多少学生":               {Response: "正在查询学生总数...", Action: "count_students", Tokens: 10},
	"学生数量":               {Response: "正在查询学生总数...", Action: "count_students", Tokens: 10},
	"在校学生":               {Response: "正在查询在校学生数...", Action: "count_students", Tokens: 10},
	"教师总数":               {Response: "正在查询教师总数...", Action: "count_teachers", Tokens: 10},
	"班级总数":               {Response: "正在查询班级总数...", Action: "count_classes", Tokens: 10},
	"今日活动":               {Response: "正在查询今日活动安排...", Action: "today_activities", Tokens: 15},
	"hello":              {Response: "Hello! How can I help you with your kindergarten today?", Action: "greeting", Tokens: 10},
	"hi":                 {Response: "Hi there! Ask me about students, teachers, or activities.", Action: "greeting", Tokens: 10},
	"thanks":             {Response: "You're welcome!", Action: "acknowledgement", Tokens: 5},
	"thank you":          {Response: "You're welcome!", Action: "acknowledgement", Tokens: 5},
	"total students":     {Response: "Looking up the current student count...", Action: "count_students", Tokens: 10},
	"how many students":  {Response: "Looking up the current student count...", Action: "count_students", Tokens: 10},
	"student count":      {Response: "Looking up the current student count...", Action: "count_students", Tokens: 10},
	"total teachers":     {Response: "Looking up the current teacher count...", Action: "count_teachers", Tokens: 10},
	"how many teachers":  {Response: "Looking up the current teacher count...", Action: "count_teachers", Tokens: 10},
	"total classes":      {Response: "Looking up the class count...", Action: "count_classes", Tokens: 10},
	"how many classes":   {Response: "Looking up the class count...", Action: "count_classes", Tokens: 10},
	"today's activities": {Response: "Looking up today's activity schedule...", Action: "today_activities", Tokens: 15},
	"todays activities":  {Response: "Looking up today's activity schedule...", Action: "today_activities", Tokens: 15},
	"activities today":   {Response: "Looking up today's activity schedule...", Action: "today_activities", Tokens: 15},
}

// chartKeywords force a query past direct matching so the full pipeline
// can shape the result for rendering.
var chartKeywords = []string{
	"as a table", "as a chart", "bar chart", "line chart", "pie chart", "in a table",
	"图表", "柱状图", "折线图", "饼图", "表格",
}

func (r *queryRouter) CheckDirectMatch(queryText string) *DirectMatch {
	normalized := strings.ToLower(strings.TrimSpace(queryText))
	if normalized == "" {
		return nil
	}

	if containsAny(normalized, chartKeywords) {
		return nil
	}

	// Exact match first
	if match, ok := directMatches[normalized]; ok {
		return &match
	}

	// Containment in either direction, longest key first so the most
	// specific phrase wins
	// Short keys like "hi" would match inside unrelated words, so only
	// longer phrases participate.
	var best *DirectMatch
	bestLen := 0
	for key := range directMatches {
		if len(key) < 5 {
			continue
		}
		if len(key) > bestLen && (strings.Contains(normalized, key) || strings.Contains(key, normalized)) {
			match := directMatches[key]
			best = &match
			bestLen = len(key)
		}
	}
	return best
}

func (r *queryRouter) Route(queryText string) RouteDecision {
	if match := r.CheckDirectMatch(queryText); match != nil {
		r.logger.Debug("routed direct", zap.String("action", match.Action))
		return RouteDecision{
			Level:           models.LevelDirect,
			Confidence:      1.0,
			EstimatedTokens: match.Tokens,
			Match:           match,
		}
	}

	complexity := EvaluateComplexity(queryText)
	if complexity.Score >= r.complexityThreshold {
		r.logger.Debug("routed complex",
			zap.Int("score", complexity.Score),
			zap.Int("threshold", r.complexityThreshold))
		return RouteDecision{
			Level:           models.LevelComplex,
			Confidence:      confidenceFromScore(complexity.Score),
			EstimatedTokens: complexity.EstimatedTokens,
		}
	}

	r.logger.Debug("routed semantic", zap.Int("score", complexity.Score))
	return RouteDecision{
		Level:           models.LevelSemantic,
		Confidence:      confidenceFromScore(complexity.Score),
		EstimatedTokens: complexity.EstimatedTokens,
	}
}

func confidenceFromScore(score int) float64 {
	c := float64(score) / 10.0
	if c > 1 {
		return 1
	}
	return c
}
