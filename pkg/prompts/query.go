// Package prompts builds the LLM prompts used by the query pipeline:
// intent analysis, SQL generation, conversational answers, and the
// fallback apology.
package prompts

import (
	"fmt"
	"strings"
)

// TableInfo names a table the model may reference, with a short
// human-readable description.
type TableInfo struct {
	Name        string
	Description string
}

// IntentSystemMessage primes the model for intent classification.
const IntentSystemMessage = "You are a database query intent analyst for a kindergarten " +
	"management system. You must decide accurately whether a user query needs database " +
	"access, and select only the tables it actually requires."

// BuildIntentAnalysisPrompt creates the prompt for query intent analysis.
// The model must answer with a single JSON object.
func BuildIntentAnalysisPrompt(queryText string, allowedTables []TableInfo) string {
	var prompt strings.Builder

	prompt.WriteString("Analyze the following query and decide whether it is a database query. ")
	prompt.WriteString("If it is, select the tables it needs.\n\n")
	prompt.WriteString(fmt.Sprintf("User query: %s\n\n", queryText))

	prompt.WriteString("Available tables:\n")
	for _, table := range allowedTables {
		prompt.WriteString(fmt.Sprintf("- %s: %s\n", table.Name, table.Description))
	}

	prompt.WriteString("\nRespond with exactly this JSON structure:\n")
	prompt.WriteString(`{
  "isDataQuery": true/false,
  "queryType": "student|teacher|activity|enrollment|finance|statistics|general",
  "confidence": 0.0-1.0,
  "requiredTables": ["table1", "table2"],
  "explanation": "why these tables were chosen",
  "keywords": ["keyword1", "keyword2"]
}`)
	prompt.WriteString("\n\nRules:\n")
	prompt.WriteString("1. Greetings and general knowledge questions are not data queries (isDataQuery false).\n")
	prompt.WriteString("2. Questions about student counts, teacher details, activity schedules and similar are data queries.\n")
	prompt.WriteString("3. requiredTables must list only tables that are actually needed.\n")
	prompt.WriteString("4. confidence reflects how certain the classification is.\n")
	prompt.WriteString("\nReturn only the JSON, nothing else:")

	return prompt.String()
}

// SQLSystemMessage primes the model for SQL generation. The query type
// from intent analysis is interpolated so the model narrows its focus.
func SQLSystemMessage(queryType string) string {
	var msg strings.Builder

	msg.WriteString("You are a PostgreSQL expert generating precise queries for a kindergarten ")
	msg.WriteString(fmt.Sprintf("management system. The user's intent has been classified as %q; ", queryType))
	msg.WriteString("generate SQL from the exact table structures provided.\n\n")
	msg.WriteString("Field conventions:\n")
	msg.WriteString("- Activity participation lives in activity_registrations (there is no activity_participants table).\n")
	msg.WriteString("- Student age is computed from birth_date with date_part('year', age(birth_date)); there is no age column.\n")
	msg.WriteString("- Student status: 0 = left, 1 = enrolled, 2 = on leave. Gender: 1 = male, 2 = female.\n")
	msg.WriteString("- The accounts table is named users.")

	return msg.String()
}

// BuildSQLGenerationPrompt creates the prompt for SQL synthesis from a
// natural-language query and the schema of the tables it may touch.
func BuildSQLGenerationPrompt(queryText, queryType string, keywords []string, schemaContext string) string {
	var prompt strings.Builder

	prompt.WriteString("Generate a precise PostgreSQL query for the request below.\n\n")
	prompt.WriteString(fmt.Sprintf("User query: %s\n", queryText))
	prompt.WriteString(fmt.Sprintf("Query type: %s\n", queryType))
	if len(keywords) > 0 {
		prompt.WriteString(fmt.Sprintf("Keywords: %s\n", strings.Join(keywords, ", ")))
	}
	prompt.WriteString("\n")
	prompt.WriteString(schemaContext)
	prompt.WriteString("\n\nRequirements:\n")
	prompt.WriteString("1. Return only the SQL statement, no explanation.\n")
	prompt.WriteString("2. Use only the tables and columns listed above.\n")
	prompt.WriteString("3. The statement must be a single read-only SELECT.\n")
	prompt.WriteString("4. Prefer rows with status = 1 where a status column exists.\n")
	prompt.WriteString("5. JOIN related tables where needed; use aggregate functions for statistics.\n")
	prompt.WriteString("6. Use to_char for date formatting in time-based queries.\n")
	prompt.WriteString("\nSQL:")

	return prompt.String()
}

// ChatSystemMessage primes the model for conversational answers.
const ChatSystemMessage = "You are the AI assistant of a kindergarten management system. " +
	"Answer questions about kindergarten administration and early education in a friendly, " +
	"professional tone."

// BuildDataSummaryPrompt asks the model to phrase query results as a
// short natural-language answer.
func BuildDataSummaryPrompt(queryText string, rowCount int, sampleJSON string) string {
	var prompt strings.Builder

	prompt.WriteString(fmt.Sprintf("The user asked: %s\n\n", queryText))
	prompt.WriteString(fmt.Sprintf("The database returned %d rows. Sample:\n%s\n\n", rowCount, sampleJSON))
	prompt.WriteString("Summarize the result in one or two friendly sentences. ")
	prompt.WriteString("State concrete numbers where present. Do not mention SQL or databases.")

	return prompt.String()
}

// FallbackResponse is returned when every processing tier has failed.
// It is a fixed apology so the failure path never depends on a model.
const FallbackResponse = "Sorry, I could not process this query right now. " +
	"Please try rephrasing it, or contact an administrator if the problem persists."
