package llm

import (
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{
			name:     "plain object",
			response: `{"isDataQuery": true}`,
			want:     `{"isDataQuery": true}`,
		},
		{
			name:     "object in markdown fence",
			response: "```json\n{\"confidence\": 0.9}\n```",
			want:     `{"confidence": 0.9}`,
		},
		{
			name:     "think tags before object",
			response: "<think>reasoning here</think>\n{\"a\": 1}",
			want:     `{"a": 1}`,
		},
		{
			name:     "surrounding prose",
			response: "Here is the analysis:\n{\"tables\": [\"students\"]}\nHope that helps.",
			want:     `{"tables": ["students"]}`,
		},
		{
			name:     "nested object",
			response: `{"outer": {"inner": [1, 2, {"deep": true}]}}`,
			want:     `{"outer": {"inner": [1, 2, {"deep": true}]}}`,
		},
		{
			name:     "braces inside strings",
			response: `{"sql": "SELECT '{' FROM t"}`,
			want:     `{"sql": "SELECT '{' FROM t"}`,
		},
		{
			name:     "array",
			response: `["students", "classes"]`,
			want:     `["students", "classes"]`,
		},
		{
			name:     "no json",
			response: "I cannot answer that.",
			wantErr:  true,
		},
		{
			name:     "unbalanced",
			response: `{"a": 1`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	type intentShape struct {
		IsDataQuery bool     `json:"isDataQuery"`
		Confidence  float64  `json:"confidence"`
		Tables      []string `json:"requiredTables"`
	}

	t.Run("valid", func(t *testing.T) {
		got, err := ParseJSONResponse[intentShape](
			"```json\n{\"isDataQuery\": true, \"confidence\": 0.85, \"requiredTables\": [\"students\"]}\n```")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.IsDataQuery || got.Confidence != 0.85 || len(got.Tables) != 1 {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := ParseJSONResponse[intentShape](`{"isDataQuery": "yes"}`)
		if err == nil {
			t.Fatal("expected unmarshal error")
		}
	})

	t.Run("no json", func(t *testing.T) {
		_, err := ParseJSONResponse[intentShape]("nothing here")
		if err == nil {
			t.Fatal("expected extraction error")
		}
	})
}
