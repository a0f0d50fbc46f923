package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/cache"
	"github.com/yyup/kindergarten-engine/pkg/llm"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/prompts"
)

type recordingWriter struct {
	records []*models.QueryRecord
}

func (w *recordingWriter) Create(ctx context.Context, record *models.QueryRecord) error {
	w.records = append(w.records, record)
	return nil
}

type chatFixture struct {
	service ChatService
	client  *llm.MockLLMClient
	records *recordingWriter
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	logger := zap.NewNop()
	store, err := cache.NewMemoryStore(64)
	if err != nil {
		t.Fatalf("NewMemoryStore() error: %v", err)
	}

	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{Content: "model answer", TotalTokens: 1200}, nil
	}

	reg := newTestRegistry(t, models.CapabilityChat)
	router := NewQueryRouter(6, logger)
	direct := NewDirectResponder(router, logger)
	records := &recordingWriter{}

	service := NewChatService(ChatServiceDeps{
		Cache:    cache.New(store, nil, time.Hour, logger),
		Router:   router,
		Direct:   direct,
		Semantic: NewSemanticResponder(nil, logger),
		Complex:  NewComplexResponder(reg, llm.NewMockClientFactory(client), logger),
		Fallback: NewFallbackController(direct, logger),
		Records:  records,
	}, 1000, logger)

	return &chatFixture{service: service, client: client, records: records}
}

func TestSubmitChatQueryValidation(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	_, err := fx.service.SubmitChatQuery(ctx, "user-1", "", "")
	if !errors.Is(err, apperrors.ErrEmptyQuery) {
		t.Errorf("empty query: err = %v, want ErrEmptyQuery", err)
	}

	_, err = fx.service.SubmitChatQuery(ctx, "user-1", "", "   \t  ")
	if !errors.Is(err, apperrors.ErrEmptyQuery) {
		t.Errorf("whitespace query: err = %v, want ErrEmptyQuery", err)
	}

	_, err = fx.service.SubmitChatQuery(ctx, "user-1", "", strings.Repeat("a", 1001))
	if !errors.Is(err, apperrors.ErrQueryTooLong) {
		t.Errorf("oversized query: err = %v, want ErrQueryTooLong", err)
	}
	if fx.client.GenerateResponseCalls != 0 {
		t.Error("invalid input must not reach a model")
	}
}

func TestSubmitChatQueryDirectGreeting(t *testing.T) {
	fx := newChatFixture(t)

	result, err := fx.service.SubmitChatQuery(context.Background(), "user-1", "", "hello")
	if err != nil {
		t.Fatalf("SubmitChatQuery() error: %v", err)
	}
	if result.Level != models.LevelDirect {
		t.Errorf("Level = %s, want direct", result.Level)
	}
	if result.Response == "" {
		t.Error("direct response is empty")
	}
	if result.IsFallback {
		t.Error("direct match must not be a fallback")
	}
	if result.TokensSaved != baselineTokens-result.TokensUsed {
		t.Errorf("TokensSaved = %d with TokensUsed = %d", result.TokensSaved, result.TokensUsed)
	}
	if fx.client.GenerateResponseCalls != 0 {
		t.Error("greeting must not reach a model")
	}
}

func TestSubmitChatQuerySemanticMissEscalatesToComplex(t *testing.T) {
	fx := newChatFixture(t)

	// The nil semantic index always fails, so a semantic-routed query
	// should fall through to the chat model.
	result, err := fx.service.SubmitChatQuery(context.Background(), "user-1", "", "show the activity schedule")
	if err != nil {
		t.Fatalf("SubmitChatQuery() error: %v", err)
	}
	if result.Response != "model answer" {
		t.Errorf("Response = %q, want the model answer", result.Response)
	}
	if result.Level != models.LevelComplex {
		t.Errorf("Level = %s, want complex", result.Level)
	}
	if result.IsFallback {
		t.Error("a successful escalation is not a fallback")
	}
	if fx.client.GenerateResponseCalls != 1 {
		t.Errorf("GenerateResponseCalls = %d, want 1", fx.client.GenerateResponseCalls)
	}
}

func TestSubmitChatQueryModelFailureServesFallback(t *testing.T) {
	fx := newChatFixture(t)
	fx.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("provider timeout")
	}

	result, err := fx.service.SubmitChatQuery(context.Background(), "user-1", "", "show the activity schedule")
	if err != nil {
		t.Fatalf("SubmitChatQuery() must not surface tier failures, got %v", err)
	}
	if !result.IsFallback {
		t.Error("expected a fallback result")
	}
	if result.Warning == "" {
		t.Error("fallback result must carry a warning")
	}
	if result.Response != prompts.FallbackResponse {
		t.Errorf("Response = %q, want the fixed fallback message", result.Response)
	}
}

func TestSubmitChatQueryFallbackIsNeverCached(t *testing.T) {
	fx := newChatFixture(t)
	fx.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (*llm.GenerateResponseResult, error) {
		return nil, errors.New("provider timeout")
	}

	ctx := context.Background()
	if _, err := fx.service.SubmitChatQuery(ctx, "user-1", "", "show the activity schedule"); err != nil {
		t.Fatalf("first call error: %v", err)
	}

	// Once the provider recovers, the same query must reattempt the
	// tier instead of replaying the apology from the cache.
	fx.client.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{Content: "recovered answer", TotalTokens: 900}, nil
	}

	result, err := fx.service.SubmitChatQuery(ctx, "user-1", "", "show the activity schedule")
	if err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if result.IsFallback {
		t.Error("fallback replayed from cache")
	}
	if result.Response != "recovered answer" {
		t.Errorf("Response = %q, want the recovered answer", result.Response)
	}
}

// Direct answers fill in live counts, so caching them would freeze a
// count for the TTL window. Only complex answers enter the cache.
func TestSubmitChatQueryDirectResultsAreNotCached(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := fx.service.SubmitChatQuery(ctx, "user-1", "", "how many students")
		if err != nil {
			t.Fatalf("call %d error: %v", i+1, err)
		}
		if result.Level != models.LevelDirect {
			t.Fatalf("call %d Level = %s, want direct", i+1, result.Level)
		}
	}

	if len(fx.records.records) != 2 {
		t.Fatalf("records = %d, want 2", len(fx.records.records))
	}
	for i, record := range fx.records.records {
		if record.CacheServed {
			t.Errorf("record %d marked cache served; direct answers must stay live", i)
		}
	}
}

func TestSubmitChatQueryCacheHit(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	first, err := fx.service.SubmitChatQuery(ctx, "user-1", "", "show the activity schedule")
	if err != nil {
		t.Fatalf("first call error: %v", err)
	}
	if first.TokensUsed == 0 {
		t.Fatal("first call should have spent tokens")
	}

	second, err := fx.service.SubmitChatQuery(ctx, "user-1", "", "Show the activity schedule")
	if err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if second.TokensUsed != 0 {
		t.Errorf("cache hit TokensUsed = %d, want 0", second.TokensUsed)
	}
	if second.TokensSaved != baselineTokens {
		t.Errorf("cache hit TokensSaved = %d, want %d", second.TokensSaved, baselineTokens)
	}
	if second.Response != first.Response {
		t.Errorf("cached response %q differs from original %q", second.Response, first.Response)
	}
	if fx.client.GenerateResponseCalls != 1 {
		t.Errorf("GenerateResponseCalls = %d, want 1 (second call served from cache)", fx.client.GenerateResponseCalls)
	}

	if len(fx.records.records) != 2 {
		t.Fatalf("records = %d, want 2", len(fx.records.records))
	}
	if fx.records.records[0].CacheServed {
		t.Error("first record should not be marked cache served")
	}
	if !fx.records.records[1].CacheServed {
		t.Error("second record should be marked cache served")
	}
}

func TestSubmitChatQueryCacheIsPerUser(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	if _, err := fx.service.SubmitChatQuery(ctx, "user-1", "", "show the activity schedule"); err != nil {
		t.Fatalf("first call error: %v", err)
	}
	if _, err := fx.service.SubmitChatQuery(ctx, "user-2", "", "show the activity schedule"); err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if fx.client.GenerateResponseCalls != 2 {
		t.Errorf("GenerateResponseCalls = %d, want 2 (cache must not cross users)", fx.client.GenerateResponseCalls)
	}
}
