package template

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
)

const (
	cacheTTL        = 30 * time.Second
	cleanupInterval = 5 * time.Minute
)

type TemplateService interface {
	GetByName(ctx context.Context, name string) (*model.Template, error)
	Snapshot(tpl *model.Template) model.TemplateSnapshot
}

// Service reads canonical template definitions with a short-TTL cache
// in front. The TTL is short on purpose: the freezer wants the current
// definition, and drift protection comes from the frozen snapshot, not
// from the cache.
type Service struct {
	repo  repository.TemplateRepository
	cache *cache.Cache
}

func NewService(repo repository.TemplateRepository) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheTTL, cleanupInterval),
	}
}

func (s *Service) GetByName(ctx context.Context, name string) (*model.Template, error) {
	if cached, ok := s.cache.Get(name); ok {
		return cached.(*model.Template), nil
	}

	tpl, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if tpl.SpecHash == "" {
		tpl.SpecHash = HashComponents(tpl.Components)
	}

	s.cache.Set(name, tpl, cache.DefaultExpiration)
	return tpl, nil
}

// Snapshot captures the immutable copy of a template that gets frozen
// against a campaign.
func (s *Service) Snapshot(tpl *model.Template) model.TemplateSnapshot {
	return model.TemplateSnapshot{
		Name:            tpl.Name,
		Language:        tpl.Language,
		Category:        tpl.Category,
		ParameterFormat: tpl.ParameterFormat,
		SpecHash:        tpl.SpecHash,
		Components:      tpl.Components,
		CapturedAt:      time.Now().UTC(),
	}
}

// HashComponents derives a content hash for a template whose store has
// none recorded.
func HashComponents(components []byte) string {
	sum := sha256.Sum256(components)
	return hex.EncodeToString(sum[:])
}
