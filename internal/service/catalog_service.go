package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/imhighyat/book-swap-api/internal/catalog"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Result sources.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

const (
	defaultCatalogPageSize = 10
	defaultBookListLimit   = 20
	maxBookListLimit       = 100
)

// Cache stores provider pages. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CatalogRecorder receives catalog metrics.
type CatalogRecorder interface {
	RecordProviderCall(d time.Duration, err error)
	RecordCacheLookup(hit bool)
}

// SearchResult is one page of catalog matches.
type SearchResult struct {
	Books      []*domain.Book `json:"books"`
	TotalItems int            `json:"total_items"`
	Page       int            `json:"page"`
	Source     string         `json:"source"`
}

// BookPage is one page of the local catalog.
type BookPage struct {
	Books  []*domain.Book `json:"books"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// CatalogService searches the local catalog and the external provider.
type CatalogService interface {
	// Search looks in the local catalog first and falls back to the provider
	// when nothing matches. Provider results are persisted.
	Search(ctx context.Context, criteria domain.SearchCriteria, page int) (*SearchResult, error)

	// DeepSearch always queries the provider, skipping the local catalog and
	// the response cache.
	DeepSearch(ctx context.Context, criteria domain.SearchCriteria, page int) (*SearchResult, error)

	// ListBooks returns one page of the local catalog with its total size.
	ListBooks(ctx context.Context, limit, offset int) (*BookPage, error)

	// GetByISBN returns the cataloged book carrying isbn.
	GetByISBN(ctx context.Context, isbn string) (*domain.Book, error)
}

// CatalogOption configures a CatalogService.
type CatalogOption func(*catalogServiceImpl)

// WithCache enables the provider response cache.
func WithCache(cache Cache) CatalogOption {
	return func(s *catalogServiceImpl) {
		s.cache = cache
	}
}

// WithCatalogRecorder records provider and cache metrics.
func WithCatalogRecorder(r CatalogRecorder) CatalogOption {
	return func(s *catalogServiceImpl) {
		s.recorder = r
	}
}

// WithPageSize sets the number of results per search page.
func WithPageSize(n int) CatalogOption {
	return func(s *catalogServiceImpl) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

type catalogServiceImpl struct {
	books    store.BookStore
	provider catalog.Provider
	cache    Cache
	recorder CatalogRecorder
	pageSize int
	logger   *slog.Logger
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(
	books store.BookStore,
	provider catalog.Provider,
	logger *slog.Logger,
	opts ...CatalogOption,
) (CatalogService, error) {
	if books == nil {
		return nil, nilDependency("books")
	}
	if provider == nil {
		return nil, nilDependency("provider")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &catalogServiceImpl{
		books:    books,
		provider: provider,
		pageSize: defaultCatalogPageSize,
		logger:   logger.With(slog.String("component", "catalog_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func checkSearch(op string, criteria domain.SearchCriteria, page int) error {
	if criteria == nil || strings.TrimSpace(criteria.Value()) == "" {
		return E(KindValidation, op, "Empty search requested.", domain.ErrInvalidSearchCriteria)
	}
	if page < 1 {
		return E(KindValidation, op, "Query value unexpected.",
			fmt.Errorf("%w: page must be at least 1", domain.ErrValidation))
	}
	return nil
}

// Search implements CatalogService.Search
func (s *catalogServiceImpl) Search(
	ctx context.Context,
	criteria domain.SearchCriteria,
	page int,
) (*SearchResult, error) {
	const op = "catalog.search"
	if err := checkSearch(op, criteria, page); err != nil {
		return nil, err
	}

	books, total, err := s.books.Search(ctx, criteria, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("local catalog search failed",
			slog.String("error", err.Error()))
		return nil, fromStore(op, err)
	}
	// Any local match keeps the search local, even past its last page.
	if total > 0 {
		return &SearchResult{
			Books:      books,
			TotalItems: total,
			Page:       page,
			Source:     SourceLocal,
		}, nil
	}

	return s.fetchRemote(ctx, op, criteria, page, true)
}

// DeepSearch implements CatalogService.DeepSearch
func (s *catalogServiceImpl) DeepSearch(
	ctx context.Context,
	criteria domain.SearchCriteria,
	page int,
) (*SearchResult, error) {
	const op = "catalog.deep_search"
	if err := checkSearch(op, criteria, page); err != nil {
		return nil, err
	}
	return s.fetchRemote(ctx, op, criteria, page, false)
}

func cacheKey(criteria domain.SearchCriteria, page int) string {
	return fmt.Sprintf("search:%s:%s:%d",
		criteria.Category(), strings.ToLower(strings.TrimSpace(criteria.Value())), page)
}

// fetchRemote queries the provider, persists every result by ISBN and
// returns the stored records. useCache reads and fills the response cache;
// without it the cached page is dropped so later searches see fresh data.
func (s *catalogServiceImpl) fetchRemote(
	ctx context.Context,
	op string,
	criteria domain.SearchCriteria,
	page int,
	useCache bool,
) (*SearchResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("category", string(criteria.Category())),
		slog.Int("page", page))
	key := cacheKey(criteria, page)

	if useCache {
		if cached, ok := s.cached(ctx, key); ok {
			return cached, nil
		}
	}

	start := time.Now()
	result, err := s.provider.Search(ctx, catalog.Query{
		Criteria:   criteria,
		StartIndex: (page - 1) * s.pageSize,
		MaxResults: s.pageSize,
	})
	if s.recorder != nil {
		s.recorder.RecordProviderCall(time.Since(start), err)
	}
	if err != nil {
		log.Error("catalog provider search failed", slog.String("error", err.Error()))
		return nil, E(KindUpstream, op, "Internal server error occured.", err)
	}
	if len(result.Books) == 0 {
		return nil, E(KindNotFound, op, "No books found with your criteria.", store.ErrBookNotFound)
	}

	stored := make([]*domain.Book, 0, len(result.Books))
	for _, book := range result.Books {
		saved, created, err := s.books.UpsertByISBN(ctx, book)
		if err != nil {
			log.Error("failed to persist provider result",
				slog.String("error", err.Error()),
				slog.String("title", book.Title))
			return nil, fromStore(op, err)
		}
		if created {
			log.Debug("cataloged new book", slog.String("book_id", saved.ID.String()))
		}
		stored = append(stored, saved)
	}

	res := &SearchResult{
		Books:      stored,
		TotalItems: result.TotalItems,
		Page:       page,
		Source:     SourceRemote,
	}

	if s.cache != nil {
		if useCache {
			s.fill(ctx, key, res)
		} else if err := s.cache.Delete(ctx, key); err != nil {
			log.Warn("failed to drop cached page", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// cached returns the cached page for key. Cache failures count as misses.
func (s *catalogServiceImpl) cached(ctx context.Context, key string) (*SearchResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("catalog cache read failed", slog.String("error", err.Error()))
		ok = false
	}
	if s.recorder != nil {
		s.recorder.RecordCacheLookup(ok)
	}
	if !ok {
		return nil, false
	}

	var res SearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		log.Warn("discarding unreadable cache entry", slog.String("error", err.Error()))
		return nil, false
	}
	return &res, true
}

func (s *catalogServiceImpl) fill(ctx context.Context, key string, res *SearchResult) {
	raw, err := json.Marshal(res)
	if err == nil {
		err = s.cache.Set(ctx, key, raw)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("catalog cache write failed",
			slog.String("error", err.Error()))
	}
}

// ListBooks implements CatalogService.ListBooks
func (s *catalogServiceImpl) ListBooks(ctx context.Context, limit, offset int) (*BookPage, error) {
	const op = "catalog.list"

	if limit < 0 || offset < 0 {
		return nil, E(KindValidation, op, "Query value unexpected.",
			fmt.Errorf("%w: limit and offset must not be negative", domain.ErrValidation))
	}
	if limit == 0 {
		limit = defaultBookListLimit
	}
	if limit > maxBookListLimit {
		limit = maxBookListLimit
	}

	books, total, err := s.books.List(ctx, limit, offset)
	if err != nil {
		return nil, fromStore(op, err)
	}
	return &BookPage{Books: books, Total: total, Limit: limit, Offset: offset}, nil
}

// GetByISBN implements CatalogService.GetByISBN
func (s *catalogServiceImpl) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	const op = "catalog.get_by_isbn"

	n := domain.NormalizeISBN(isbn)
	if !domain.IsValidISBN(n) {
		return nil, validation(op, domain.ErrInvalidISBN)
	}

	book, err := s.books.GetByISBN(ctx, n)
	if err != nil {
		return nil, fromStore(op, err)
	}
	return book, nil
}
