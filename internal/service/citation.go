package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_citation_service.go -package=mocks -mock_names=CitationService=MockCitationService groundchat/internal/service CitationService

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"groundchat/internal/citation"
	"groundchat/internal/contextutil"
	"groundchat/internal/metrics"
	"groundchat/internal/storage"
)

// DefaultCacheSize is the number of processed answers kept in memory.
const DefaultCacheSize = 512

// CitationService resolves and renumbers the citations of an answer.
type CitationService interface {
	// Process runs the citation engine over one answer and its pools.
	Process(ctx context.Context, in citation.Input) (citation.Result, error)
}

// citationService implements CitationService.
type citationService struct {
	engine *citation.Engine
	memo   *lru.Cache
	store  storage.CacheStore
}

// NewCitationService creates a CitationService. store may be nil; memoSize <= 0 uses
// DefaultCacheSize.
func NewCitationService(engine *citation.Engine, store storage.CacheStore, memoSize int) (CitationService, error) {
	if engine == nil {
		engine = citation.NewEngine()
	}
	if memoSize <= 0 {
		memoSize = DefaultCacheSize
	}
	memo, err := lru.New(memoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create citation memo: %w", err)
	}
	return &citationService{
		engine: engine,
		memo:   memo,
		store:  store,
	}, nil
}

// Process validates the pools, then serves from memory, then from the store, then runs
// the engine. Inputs with a Formatter or Emit hook always run the engine. The memo keeps
// its own copy, so callers may modify the returned result.
func (s *citationService) Process(ctx context.Context, in citation.Input) (citation.Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := validatePools(in.Pools); err != nil {
		logger.WarnContext(ctx, "invalid citation pools", "error", err)
		return citation.Result{}, err
	}

	cacheable := in.Formatter == nil && in.Emit == nil
	if !cacheable {
		return s.run(ctx, in), nil
	}

	key := citation.CacheKey(in)
	if v, ok := s.memo.Get(key); ok {
		metrics.RecordCacheLookup("memory", true)
		return v.(citation.Result).Clone(), nil
	}
	metrics.RecordCacheLookup("memory", false)

	if s.store != nil {
		cached, err := s.store.Get(ctx, key)
		switch {
		case err == nil:
			metrics.RecordCacheLookup("store", true)
			s.memo.Add(key, cached.Clone())
			return *cached, nil
		case errors.Is(err, storage.ErrNotFound):
			metrics.RecordCacheLookup("store", false)
		default:
			logger.WarnContext(ctx, "citation cache lookup failed", "error", err)
		}
	}

	res := s.run(ctx, in)
	s.memo.Add(key, res.Clone())
	if s.store != nil {
		if err := s.store.Put(ctx, key, res); err != nil {
			logger.WarnContext(ctx, "failed to store processed answer", "error", err)
		}
	}
	return res, nil
}

func (s *citationService) run(ctx context.Context, in citation.Input) citation.Result {
	start := time.Now()
	res := s.engine.Process(ctx, in)
	metrics.RecordCitations(res, time.Since(start))
	return res
}

// validatePools rejects pools whose original indices are not positive and unique.
func validatePools(p citation.Pools) error {
	for _, pool := range []struct {
		field string
		items []citation.EvidenceItem
	}{
		{"pools.kb", p.KB},
		{"pools.web", p.Web},
		{"pools.meta", p.Meta},
	} {
		seen := make(map[int]bool, len(pool.items))
		for _, it := range pool.items {
			if it.OriginalIndex <= 0 {
				return invalidField(pool.field, "index %d must be positive", it.OriginalIndex)
			}
			if seen[it.OriginalIndex] {
				return invalidField(pool.field, "duplicate index %d", it.OriginalIndex)
			}
			seen[it.OriginalIndex] = true
		}
	}
	return nil
}
