// Package semantic provides an embedding-backed document index. The
// index answers recurring questions from curated documents when a query
// is close enough in embedding space, without a full LLM round trip.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Document is a curated answer with its embedding vector.
type Document struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Match pairs a document with its similarity to the query.
type Match struct {
	Document *Document
	Score    float64
}

// Embedder produces embedding vectors for text.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// DocumentStore persists documents between restarts.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]*Document, error)
	UpsertDocument(ctx context.Context, doc *Document) error
}

// Index matches queries against the document corpus.
type Index interface {
	// Search returns documents scoring at or above the index threshold,
	// best first, at most limit entries.
	Search(ctx context.Context, queryText string, limit int) ([]Match, error)

	// Add embeds and stores a document, making it searchable immediately.
	Add(ctx context.Context, doc *Document) error

	// Refresh reloads the corpus from the store.
	Refresh(ctx context.Context) error
}

type index struct {
	embedder  Embedder
	store     DocumentStore
	threshold float64
	logger    *zap.Logger

	mu   sync.RWMutex
	docs []*Document
}

var _ Index = (*index)(nil)

// NewIndex builds an index over the store's documents. A nil store
// yields an empty in-memory index.
func NewIndex(ctx context.Context, embedder Embedder, store DocumentStore, threshold float64, logger *zap.Logger) (Index, error) {
	idx := &index{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
		logger:    logger.Named("semantic"),
	}
	if store != nil {
		if err := idx.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *index) Refresh(ctx context.Context) error {
	if idx.store == nil {
		return nil
	}
	docs, err := idx.store.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	idx.mu.Lock()
	idx.docs = docs
	idx.mu.Unlock()
	idx.logger.Debug("document corpus loaded", zap.Int("count", len(docs)))
	return nil
}

func (idx *index) Add(ctx context.Context, doc *Document) error {
	if doc.Title == "" || doc.Content == "" {
		return fmt.Errorf("document title and content are required")
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	embedding, err := idx.embedder.CreateEmbedding(ctx, doc.Title+"\n"+doc.Content)
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}
	doc.Embedding = embedding

	if idx.store != nil {
		if err := idx.store.UpsertDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to persist document: %w", err)
		}
	}

	idx.mu.Lock()
	idx.docs = append(idx.docs, doc)
	idx.mu.Unlock()
	return nil
}

func (idx *index) Search(ctx context.Context, queryText string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}

	idx.mu.RLock()
	docs := idx.docs
	idx.mu.RUnlock()
	if len(docs) == 0 {
		return nil, nil
	}

	query, err := idx.embedder.CreateEmbedding(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		score, err := CosineSimilarity(query, doc.Embedding)
		if err != nil {
			idx.logger.Warn("skipping document with mismatched embedding",
				zap.String("document_id", doc.ID.String()), zap.Error(err))
			continue
		}
		if score >= idx.threshold {
			matches = append(matches, Match{Document: doc, Score: score})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// 1 means identical direction, 0 orthogonal. Zero-magnitude vectors
// score 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}
