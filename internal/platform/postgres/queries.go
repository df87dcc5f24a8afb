package postgres

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
)

const (
	dialectPostgres = "postgres"

	tableRequests = "requests"
	tableBooks    = "books"

	colRequestFrom = "request_from"
	colRequestTo   = "request_to"
	colStatus      = "status"
	colRequestDate = "request_date"
	colID          = "id"
)

// requestColumns is the scan order used by scanRequest.
var requestColumns = []any{
	"id",
	"request_from",
	"request_to",
	"requested_entry_id",
	"requested_book_id",
	"traded_entry_id",
	"traded_book_id",
	"status",
	"settled",
	"version",
	"request_date",
	"updated_at",
}

// isbnAggregate collects a book's identifiers in their stored order as a
// JSON array; arrays are read back as JSON to stay within database/sql.
const isbnAggregate = "to_jsonb(ARRAY(SELECT bi.isbn FROM book_isbns bi WHERE bi.book_id = books.id ORDER BY bi.ordinal))"

// bookColumns is the scan order used by scanBook.
var bookColumns = []any{
	"books.id",
	"books.title",
	goqu.L("to_jsonb(books.authors)").As("authors"),
	"books.images",
	"books.summary",
	"books.created_at",
	goqu.L(isbnAggregate).As("isbns"),
}

// requestFilterWhere translates a RequestFilter for userID into WHERE
// expressions. With no origin the user may be on either side.
func requestFilterWhere(userID uuid.UUID, f domain.RequestFilter) []exp.Expression {
	id := userID.String()

	var party exp.Expression = goqu.Or(
		goqu.C(colRequestFrom).Eq(id),
		goqu.C(colRequestTo).Eq(id),
	)
	if f.Origin != nil {
		switch *f.Origin {
		case domain.OriginMe:
			party = goqu.C(colRequestFrom).Eq(id)
		case domain.OriginThem:
			party = goqu.C(colRequestTo).Eq(id)
		}
	}

	where := []exp.Expression{party}
	if f.Status != nil {
		where = append(where, goqu.C(colStatus).Eq(string(*f.Status)))
	}
	return where
}

// buildRequestFilterQuery returns the page query for a request listing,
// newest first.
func buildRequestFilterQuery(userID uuid.UUID, f domain.RequestFilter) (string, []any, error) {
	ds := goqu.Dialect(dialectPostgres).
		From(tableRequests).
		Prepared(true).
		Select(requestColumns...).
		Where(requestFilterWhere(userID, f)...).
		Order(goqu.I(colRequestDate).Desc(), goqu.I(colID).Asc())

	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build request filter query: %w", err)
	}
	return query, args, nil
}

// buildRequestCountQuery counts every match of the filter, ignoring paging.
func buildRequestCountQuery(userID uuid.UUID, f domain.RequestFilter) (string, []any, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableRequests).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(requestFilterWhere(userID, f)...).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build request count query: %w", err)
	}
	return query, args, nil
}

// escapeLike makes user text literal inside a LIKE pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func containsPattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

// bookSearchFilter matches the local catalog: exact ISBN, or a
// case-insensitive substring of any author or of the title.
func bookSearchFilter(c domain.SearchCriteria) (exp.Expression, error) {
	switch crit := c.(type) {
	case domain.ISBNCriteria:
		return goqu.L(
			"EXISTS (SELECT 1 FROM book_isbns bi WHERE bi.book_id = books.id AND bi.isbn = ?)",
			string(crit),
		), nil
	case domain.AuthorCriteria:
		return goqu.L(
			"EXISTS (SELECT 1 FROM unnest(books.authors) AS author WHERE author ILIKE ?)",
			containsPattern(string(crit)),
		), nil
	case domain.TitleCriteria:
		return goqu.I("books.title").ILike(containsPattern(string(crit))), nil
	default:
		return nil, fmt.Errorf("%w: unsupported criteria %T", domain.ErrInvalidSearchCriteria, c)
	}
}

// buildBookSearchQuery selects one page of books matching c.
func buildBookSearchQuery(c domain.SearchCriteria, limit, offset int) (string, []any, error) {
	filter, err := bookSearchFilter(c)
	if err != nil {
		return "", nil, err
	}

	ds := goqu.Dialect(dialectPostgres).
		From(tableBooks).
		Prepared(true).
		Select(bookColumns...).
		Where(filter).
		Order(goqu.I("books.created_at").Asc(), goqu.I("books.id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build book search query: %w", err)
	}
	return query, args, nil
}

// buildBookSearchCountQuery counts every book matching c.
func buildBookSearchCountQuery(c domain.SearchCriteria) (string, []any, error) {
	filter, err := bookSearchFilter(c)
	if err != nil {
		return "", nil, err
	}

	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableBooks).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(filter).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build book search count query: %w", err)
	}
	return query, args, nil
}

// buildBookSameWorkQuery finds an ISBN-less book with the same title and
// authors as book, compared case-insensitively.
func buildBookSameWorkQuery(book *domain.Book) (string, []any, error) {
	authors := make([]string, len(book.Authors))
	for i, a := range book.Authors {
		authors[i] = strings.ToLower(strings.TrimSpace(a))
	}

	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableBooks).
		Prepared(true).
		Select(goqu.I("books.id")).
		Where(
			goqu.L("lower(btrim(books.title)) = ?", strings.ToLower(strings.TrimSpace(book.Title))),
			goqu.L("ARRAY(SELECT lower(btrim(a)) FROM unnest(books.authors) WITH ORDINALITY AS t(a, n) ORDER BY n)::text[] = ?::text[]",
				authorsArrayLiteral(authors)),
			goqu.L("NOT EXISTS (SELECT 1 FROM book_isbns bi WHERE bi.book_id = books.id)"),
		).
		Order(goqu.I("books.created_at").Asc(), goqu.I("books.id").Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build same work query: %w", err)
	}
	return query, args, nil
}

// authorsArrayLiteral renders authors as a Postgres text[] literal.
func authorsArrayLiteral(authors []string) string {
	quoted := make([]string, len(authors))
	for i, a := range authors {
		a = strings.ReplaceAll(a, `\`, `\\`)
		a = strings.ReplaceAll(a, `"`, `\"`)
		quoted[i] = `"` + a + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

// buildBookListQuery pages through the whole catalog in creation order.
func buildBookListQuery(limit, offset int) (string, []any, error) {
	ds := goqu.Dialect(dialectPostgres).
		From(tableBooks).
		Prepared(true).
		Select(bookColumns...).
		Order(goqu.I("books.created_at").Asc(), goqu.I("books.id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build book list query: %w", err)
	}
	return query, args, nil
}

// buildBookByIDQuery selects one book with its identifiers.
func buildBookByIDQuery(id uuid.UUID) (string, []any, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableBooks).
		Prepared(true).
		Select(bookColumns...).
		Where(goqu.I("books.id").Eq(id.String())).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build book query: %w", err)
	}
	return query, args, nil
}
