package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/listproxy/backend/internal/domain"
)

// Stage names, used in logs and cache keys
const (
	StagePrimaryAPI     = "primary_api"
	StageSecondaryAPI   = "secondary_api"
	StageRawHTML        = "raw_html"
	StageStaticFallback = "static_fallback"
)

// stage is one step of the fetch pipeline
type stage struct {
	name string
	// cacheKey identifies the live result of this stage; empty disables caching
	cacheKey string
	// live stages talk to the upstream and run under the per-call timeout
	live bool
	run  func(ctx context.Context, limit int) domain.FetchOutcome
}

// runPipeline runs stages in order and returns the first non-empty result,
// finalized and truncated to limit. Errors and empty results both fall
// through. When every stage comes back empty the result is an empty list,
// unless some stage failed to reach the upstream, which is reported as
// ErrUpstreamUnreachable.
func (s *ListingService) runPipeline(ctx context.Context, op string, stages []stage, limit int) ([]domain.ProductItem, error) {
	var transportErr error
	logger := s.logger.With("op", op)

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		outcome := s.runStage(ctx, st, limit)
		attrs := []any{"stage", st.name, "outcome", outcome.Kind.String(), "duration", time.Since(start).String()}

		switch outcome.Kind {
		case domain.OutcomeSuccess:
			items := s.finalize(outcome.Items, limit)
			if len(items) > 0 {
				logger.Info("stage produced listings", append(attrs, "count", len(items))...)
				return items, nil
			}
			logger.Info("stage listings were all invalid", attrs...)
		case domain.OutcomeUpstreamError:
			if domain.IsTransport(outcome.Err) {
				transportErr = outcome.Err
			}
			logger.Warn("stage failed", append(attrs, "error", outcome.Err)...)
		default:
			logger.Info("stage empty", attrs...)
		}
	}

	if transportErr != nil {
		return nil, transportErr
	}
	return []domain.ProductItem{}, nil
}

// runStage executes one stage, consulting the result cache for live stages
func (s *ListingService) runStage(ctx context.Context, st stage, limit int) domain.FetchOutcome {
	if !st.live {
		return st.run(ctx, limit)
	}

	key := ""
	if s.cache != nil && st.cacheKey != "" {
		key = fmt.Sprintf("listing:%s:%s:%d", st.name, st.cacheKey, limit)
		if items, ok := s.cachedItems(ctx, key); ok {
			return domain.Success(items)
		}
	}

	stageCtx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()

	outcome := st.run(stageCtx, limit)
	if outcome.Kind == domain.OutcomeSuccess && key != "" {
		s.storeItems(ctx, key, outcome.Items)
	}
	return outcome
}

func (s *ListingService) cachedItems(ctx context.Context, key string) ([]domain.ProductItem, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var items []domain.ProductItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return items, true
}

func (s *ListingService) storeItems(ctx context.Context, key string, items []domain.ProductItem) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	// Log but don't fail if caching fails
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// finalize routes links and images through the proxy, drops invalid items,
// keeps the first item per link and truncates to limit.
func (s *ListingService) finalize(items []domain.ProductItem, limit int) []domain.ProductItem {
	out := make([]domain.ProductItem, 0, min(len(items), limit))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item.Link = s.rc.Rewrite(item.Link)
		item.Image = s.rc.Rewrite(item.Image)
		if !item.Valid() {
			continue
		}
		if _, dup := seen[item.Link]; dup {
			continue
		}
		seen[item.Link] = struct{}{}
		out = append(out, item)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// componentLogger tags logger with a component name, defaulting to slog.Default
func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}
