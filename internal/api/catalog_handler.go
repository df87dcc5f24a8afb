package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/imhighyat/book-swap-api/internal/api/shared"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/service"
)

var searchCategories = []domain.SearchCategory{
	domain.SearchByISBN,
	domain.SearchByAuthor,
	domain.SearchByTitle,
}

// CatalogHandler handles catalog search and listing HTTP requests.
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalogService service.CatalogService, logger *slog.Logger) *CatalogHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CatalogHandler")
	}

	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger.With(slog.String("component", "catalog_handler")),
	}
}

type searchFunc func(ctx context.Context, criteria domain.SearchCriteria, page int) (*service.SearchResult, error)

// Search handles GET /search?isbn=|author=|title=&page=
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, h.catalogService.Search)
}

// DeepSearch handles GET /search/deepsearch?isbn=|author=|title=&page=
func (h *CatalogHandler) DeepSearch(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, h.catalogService.DeepSearch)
}

func (h *CatalogHandler) search(w http.ResponseWriter, r *http.Request, fn searchFunc) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if err := checkQueryKeys(r, "isbn", "author", "title", "page"); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	criteria, err := searchCriteriaFromQuery(r)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	res, err := fn(r.Context(), criteria, page)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("catalog search served",
		slog.String("source", res.Source),
		slog.Int("results", len(res.Books)))
	shared.RespondWithJSON(w, r, http.StatusOK, SearchResponse{
		Books:      booksToResponse(res.Books),
		TotalItems: res.TotalItems,
		Page:       res.Page,
		Source:     res.Source,
	})
}

// searchCriteriaFromQuery returns nil criteria when no category is present,
// leaving the "empty search" answer to the service.
func searchCriteriaFromQuery(r *http.Request) (domain.SearchCriteria, error) {
	q := r.URL.Query()

	var found []domain.SearchCategory
	for _, c := range searchCategories {
		if q.Has(string(c)) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, service.E(service.KindValidation, "api.search", queryUnexpected,
			fmt.Errorf("%w: more than one search category", domain.ErrInvalidSearchCriteria))
	}

	value := q.Get(string(found[0]))
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	criteria, err := domain.NewSearchCriteria(string(found[0]), value)
	if err != nil {
		return nil, service.E(service.KindValidation, "api.search", queryUnexpected, err)
	}
	return criteria, nil
}

// ListBooks handles GET /books?limit=&offset=
func (h *CatalogHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	if err := checkQueryKeys(r, "limit", "offset"); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	page, err := h.catalogService.ListBooks(r.Context(), limit, offset)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BookListResponse{
		Books:  booksToResponse(page.Books),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// GetBook handles GET /books/{isbn}
func (h *CatalogHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.catalogService.GetByISBN(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, bookToResponse(book))
}
