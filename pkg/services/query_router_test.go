package services

import (
	"testing"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/models"
)

func TestCheckDirectMatch(t *testing.T) {
	router := NewQueryRouter(6, zap.NewNop())

	tests := []struct {
		name       string
		query      string
		wantAction string
		wantNil    bool
	}{
		{"exact greeting", "hello", "greeting", false},
		{"case and whitespace", "  Hello  ", "greeting", false},
		{"chinese greeting", "你好", "greeting", false},
		{"chinese thanks", "谢谢", "acknowledgement", false},
		{"chinese student count", "学生总数", "count_students", false},
		{"chinese count in sentence", "我们现在有多少学生", "count_students", false},
		{"contained phrase", "how many students do we have", "count_students", false},
		{"teacher count", "total teachers", "count_teachers", false},
		{"chart keyword bypasses", "how many students as a bar chart", "", true},
		{"chinese chart keyword bypasses", "学生总数用柱状图展示", "", true},
		{"no match", "compare enrollment trends across years", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := router.CheckDirectMatch(tt.query)
			if tt.wantNil {
				if match != nil {
					t.Fatalf("expected no match, got action %q", match.Action)
				}
				return
			}
			if match == nil {
				t.Fatal("expected a match, got nil")
			}
			if match.Action != tt.wantAction {
				t.Errorf("Action = %q, want %q", match.Action, tt.wantAction)
			}
		})
	}
}

func TestRouteLevels(t *testing.T) {
	router := NewQueryRouter(6, zap.NewNop())

	tests := []struct {
		name  string
		query string
		want  models.ProcessingLevel
	}{
		{"greeting is direct", "hello", models.LevelDirect},
		{"chinese greeting is direct", "你好", models.LevelDirect},
		{"count phrase is direct", "how many students", models.LevelDirect},
		{"simple lookup is semantic", "show the activity schedule", models.LevelSemantic},
		{
			"analysis request is complex",
			"please analyze the enrollment trend over the past three years and recommend how to improve the conversion rate compared with other kindergartens",
			models.LevelComplex,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := router.Route(tt.query)
			if decision.Level != tt.want {
				t.Errorf("Route(%q).Level = %q, want %q", tt.query, decision.Level, tt.want)
			}
		})
	}
}

func TestRouteDirectCarriesMatch(t *testing.T) {
	router := NewQueryRouter(6, zap.NewNop())

	decision := router.Route("how many students")
	if decision.Match == nil {
		t.Fatal("expected direct decision to carry its match")
	}
	if decision.Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0", decision.Confidence)
	}
	if decision.EstimatedTokens != decision.Match.Tokens {
		t.Errorf("EstimatedTokens = %d, want %d", decision.EstimatedTokens, decision.Match.Tokens)
	}
}

func TestEvaluateComplexity(t *testing.T) {
	simple := EvaluateComplexity("count students")
	analytical := EvaluateComplexity("analyze the attendance trend and compare classes, explain why it changed")

	if simple.Score >= analytical.Score {
		t.Errorf("expected analytical query to score higher: simple=%d analytical=%d",
			simple.Score, analytical.Score)
	}
	if analytical.EstimatedTokens <= simple.EstimatedTokens {
		t.Error("expected analytical query to estimate more tokens")
	}
}

func TestEvaluateComplexityDeterministic(t *testing.T) {
	query := "list all activities for this month"
	first := EvaluateComplexity(query)
	second := EvaluateComplexity(query)
	if first.Score != second.Score || first.EstimatedTokens != second.EstimatedTokens {
		t.Error("complexity evaluation must be deterministic")
	}
}
