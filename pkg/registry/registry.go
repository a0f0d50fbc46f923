// Package registry tracks registered model endpoints and selects which model
// serves each capability.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/models"
)

// ModelStore persists model descriptors. The registry works without one
// (in-memory only) when nil.
type ModelStore interface {
	ListModels(ctx context.Context) ([]*models.ModelDescriptor, error)
	UpsertModel(ctx context.Context, descriptor *models.ModelDescriptor) error
	SetModelActive(ctx context.Context, id uuid.UUID, active bool) error
}

// ModelRegistry selects models by capability.
type ModelRegistry interface {
	// Register adds or replaces a model descriptor. A zero ID is assigned;
	// a zero RegisteredAt is stamped with the current time.
	Register(ctx context.Context, descriptor *models.ModelDescriptor) error

	// SelectForCapability returns the active model with the highest
	// priority for the capability. Ties resolve to the earliest
	// registration. Returns apperrors.ErrNoModelAvailable when none match.
	SelectForCapability(ctx context.Context, capability string) (*models.ModelDescriptor, error)

	// List returns all registered descriptors, active or not.
	List(ctx context.Context) []*models.ModelDescriptor

	// SetActive flips a model's availability without re-registering it.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// entry pairs a descriptor with its insertion sequence for stable ordering.
type entry struct {
	descriptor *models.ModelDescriptor
	seq        int
}

type modelRegistry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	nextSeq int

	store  ModelStore
	logger *zap.Logger
}

// New creates a ModelRegistry. If store is non-nil, existing descriptors are
// loaded from it and registrations are written through.
func New(ctx context.Context, store ModelStore, logger *zap.Logger) (ModelRegistry, error) {
	r := &modelRegistry{
		entries: make(map[uuid.UUID]*entry),
		store:   store,
		logger:  logger.Named("registry"),
	}

	if store != nil {
		descriptors, err := store.ListModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("load model descriptors: %w", err)
		}
		// Stored order is registration order.
		for _, d := range descriptors {
			r.entries[d.ID] = &entry{descriptor: d, seq: r.nextSeq}
			r.nextSeq++
		}
		r.logger.Info("model registry loaded", zap.Int("models", len(descriptors)))
	}

	return r, nil
}

func (r *modelRegistry) Register(ctx context.Context, descriptor *models.ModelDescriptor) error {
	if descriptor.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if descriptor.Provider != models.ProviderOpenAI && descriptor.Provider != models.ProviderAnthropic {
		return fmt.Errorf("unknown provider %q", descriptor.Provider)
	}
	if len(descriptor.Capabilities) == 0 {
		return fmt.Errorf("at least one capability is required")
	}

	if descriptor.ID == uuid.Nil {
		descriptor.ID = uuid.New()
	}
	if descriptor.RegisteredAt.IsZero() {
		descriptor.RegisteredAt = time.Now()
	}

	if r.store != nil {
		if err := r.store.UpsertModel(ctx, descriptor); err != nil {
			return fmt.Errorf("persist model descriptor: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[descriptor.ID]; ok {
		// Re-registration keeps the original position.
		existing.descriptor = descriptor
	} else {
		r.entries[descriptor.ID] = &entry{descriptor: descriptor, seq: r.nextSeq}
		r.nextSeq++
	}

	r.logger.Info("model registered",
		zap.String("model", descriptor.Name),
		zap.String("provider", descriptor.Provider),
		zap.Strings("capabilities", descriptor.Capabilities),
		zap.Int("priority", descriptor.Priority))
	return nil
}

func (r *modelRegistry) SelectForCapability(ctx context.Context, capability string) (*models.ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *entry
	for _, e := range r.entries {
		if !e.descriptor.Active || !e.descriptor.HasCapability(capability) {
			continue
		}
		if best == nil ||
			e.descriptor.Priority > best.descriptor.Priority ||
			(e.descriptor.Priority == best.descriptor.Priority && e.seq < best.seq) {
			best = e
		}
	}

	if best == nil {
		return nil, fmt.Errorf("capability %q: %w", capability, apperrors.ErrNoModelAvailable)
	}
	return best.descriptor, nil
}

func (r *modelRegistry) List(ctx context.Context) []*models.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	descriptors := make([]*models.ModelDescriptor, len(entries))
	for i, e := range entries {
		descriptors[i] = e.descriptor
	}
	return descriptors
}

func (r *modelRegistry) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if r.store != nil {
		if err := r.store.SetModelActive(ctx, id, active); err != nil {
			return fmt.Errorf("persist model state: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	e.descriptor.Active = active

	r.logger.Info("model availability changed",
		zap.String("model", e.descriptor.Name),
		zap.Bool("active", active))
	return nil
}

// Ensure modelRegistry implements ModelRegistry at compile time.
var _ ModelRegistry = (*modelRegistry)(nil)
