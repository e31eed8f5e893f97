package usecase

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/listproxy/backend/internal/domain"
)

// Default limits applied when the configuration leaves them unset
const (
	DefaultItemLimit = 30
	MaxItemLimit     = 60
)

// ListingServiceConfig holds configuration for the listing service
type ListingServiceConfig struct {
	DefaultLimit int
	MaxLimit     int
	// StageTimeout bounds every upstream call made by a pipeline stage
	StageTimeout time.Duration
	// CacheTTL is only used when a cache is supplied
	CacheTTL time.Duration
	Sort     string
	Order    string
}

// ListingService runs the fetch pipeline behind the listing operations
type ListingService struct {
	upstream     domain.UpstreamClient
	catalog      domain.Catalog
	cache        domain.CacheRepository
	rc           *RewriteContext
	scanner      *PageScanner
	logger       *slog.Logger
	defaultLimit int
	maxLimit     int
	stageTimeout time.Duration
	cacheTTL     time.Duration
	sort         string
	order        string
}

// NewListingService creates a new listing service. cache may be nil.
func NewListingService(
	upstream domain.UpstreamClient,
	catalog domain.Catalog,
	cache domain.CacheRepository,
	rc *RewriteContext,
	config ListingServiceConfig,
	logger *slog.Logger,
) *ListingService {
	s := &ListingService{
		upstream:     upstream,
		catalog:      catalog,
		cache:        cache,
		rc:           rc,
		scanner:      NewPageScanner(rc, logger),
		logger:       componentLogger(logger, "listing"),
		defaultLimit: config.DefaultLimit,
		maxLimit:     config.MaxLimit,
		stageTimeout: config.StageTimeout,
		cacheTTL:     config.CacheTTL,
		sort:         config.Sort,
		order:        config.Order,
	}
	if s.maxLimit <= 0 {
		s.maxLimit = MaxItemLimit
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = DefaultItemLimit
	}
	s.defaultLimit = min(s.defaultLimit, s.maxLimit)
	if s.stageTimeout <= 0 {
		s.stageTimeout = 12 * time.Second
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = 5 * time.Minute
	}
	return s
}

// ClampLimit applies the default to non-positive limits and caps the rest
func (s *ListingService) ClampLimit(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	return min(limit, s.maxLimit)
}

// GetFeed scrapes an arbitrary listing page, falling back to the static dataset
func (s *ListingService) GetFeed(ctx context.Context, path string, limit int) ([]domain.ProductItem, error) {
	target := NewProxyTarget(path)
	if err := ValidateResourcePath(target.Path); err != nil {
		return nil, err
	}
	limit = s.ClampLimit(limit)

	return s.runPipeline(ctx, "feed", []stage{
		s.rawHTMLStage(target),
		s.fallbackStage(target.Query.Get("keyword")),
	}, limit)
}

// GetItems serves the bundled dataset of brand when one exists and otherwise
// runs the full pipeline scoped to the brand name.
func (s *ListingService) GetItems(ctx context.Context, brand string, limit int) ([]domain.ProductItem, error) {
	limit = s.ClampLimit(limit)
	brand = strings.TrimSpace(brand)

	if brand != "" {
		if items, ok := s.catalog.Brand(brand); ok {
			s.logger.Info("serving brand dataset", "op", "items", "brand", brand, "count", len(items))
			return s.finalize(items, limit), nil
		}
	}

	query := s.searchQuery(brand, "", limit)
	return s.runPipeline(ctx, "items", s.fullPipeline(query, brand), limit)
}

// Search runs the full pipeline for a keyword and/or category. Without
// either it returns an empty list without contacting the upstream.
func (s *ListingService) Search(ctx context.Context, keyword, category string, limit int) ([]domain.ProductItem, error) {
	keyword = strings.TrimSpace(keyword)
	category = strings.TrimSpace(category)
	if keyword == "" && category == "" {
		return []domain.ProductItem{}, nil
	}
	limit = s.ClampLimit(limit)

	query := s.searchQuery(keyword, category, limit)
	return s.runPipeline(ctx, "search", s.fullPipeline(query, keyword), limit)
}

func (s *ListingService) searchQuery(keyword, category string, limit int) domain.SearchQuery {
	return domain.SearchQuery{
		Keyword:    keyword,
		CategoryID: category,
		Page:       1,
		Limit:      limit,
		Sort:       s.sort,
		Order:      s.order,
	}
}

// fullPipeline lists every stage in priority order for a typed query
func (s *ListingService) fullPipeline(query domain.SearchQuery, fallbackTerm string) []stage {
	return []stage{
		s.primaryStage(query),
		s.secondaryStage(query),
		s.rawHTMLStage(searchTarget(query)),
		s.fallbackStage(fallbackTerm),
	}
}

// searchTarget maps a typed query onto the upstream search page
func searchTarget(query domain.SearchQuery) domain.ProxyTarget {
	if query.Keyword == "" && query.CategoryID == "" {
		return domain.ProxyTarget{Path: "/"}
	}
	params := url.Values{}
	if query.Keyword != "" {
		params.Set("keyword", query.Keyword)
	}
	if query.CategoryID != "" {
		params.Set("category_id", query.CategoryID)
	}
	return domain.ProxyTarget{Path: "/search", Query: params}
}

func queryKey(query domain.SearchQuery) string {
	return url.Values{
		"keyword":  {query.Keyword},
		"category": {query.CategoryID},
		"sort":     {query.Sort},
		"order":    {query.Order},
	}.Encode()
}

func (s *ListingService) primaryStage(query domain.SearchQuery) stage {
	return stage{
		name:     StagePrimaryAPI,
		cacheKey: queryKey(query),
		live:     true,
		run: func(ctx context.Context, limit int) domain.FetchOutcome {
			items, err := s.upstream.SearchPrimary(ctx, query)
			if err != nil {
				return domain.UpstreamError(err)
			}
			return domain.Success(items)
		},
	}
}

func (s *ListingService) secondaryStage(query domain.SearchQuery) stage {
	return stage{
		name:     StageSecondaryAPI,
		cacheKey: queryKey(query),
		live:     true,
		run: func(ctx context.Context, limit int) domain.FetchOutcome {
			items, err := s.upstream.SearchSecondary(ctx, query)
			if err != nil {
				return domain.UpstreamError(err)
			}
			return domain.Success(items)
		},
	}
}

func (s *ListingService) rawHTMLStage(target domain.ProxyTarget) stage {
	return stage{
		name:     StageRawHTML,
		cacheKey: target.String(),
		live:     true,
		run: func(ctx context.Context, limit int) domain.FetchOutcome {
			page, err := s.upstream.FetchPage(ctx, target)
			if err != nil {
				return domain.UpstreamError(err)
			}
			items, err := s.scanner.Scan(page, limit)
			if err != nil {
				return domain.UpstreamError(err)
			}
			return domain.Success(items)
		},
	}
}

func (s *ListingService) fallbackStage(term string) stage {
	return stage{
		name: StageStaticFallback,
		run: func(ctx context.Context, limit int) domain.FetchOutcome {
			if items, ok := s.catalog.Brand(term); ok && term != "" {
				return domain.Success(items)
			}
			return domain.Success(s.catalog.Filter(term))
		},
	}
}
