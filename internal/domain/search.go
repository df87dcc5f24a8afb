package domain

import (
	"fmt"
	"strings"
)

// SearchCategory names the field a catalog search matches on.
type SearchCategory string

const (
	SearchByISBN   SearchCategory = "isbn"
	SearchByAuthor SearchCategory = "author"
	SearchByTitle  SearchCategory = "title"
)

// SearchCriteria is one of ISBNCriteria, AuthorCriteria or TitleCriteria.
// It is decoded once at the HTTP boundary and switched on by type afterwards.
type SearchCriteria interface {
	Category() SearchCategory
	Value() string
	isSearchCriteria()
}

// ISBNCriteria matches books carrying exactly this identifier.
type ISBNCriteria string

// AuthorCriteria matches books whose author list contains this text, ignoring case.
type AuthorCriteria string

// TitleCriteria matches books whose title contains this text, ignoring case.
type TitleCriteria string

func (c ISBNCriteria) Category() SearchCategory   { return SearchByISBN }
func (c ISBNCriteria) Value() string              { return string(c) }
func (ISBNCriteria) isSearchCriteria()            {}
func (c AuthorCriteria) Category() SearchCategory { return SearchByAuthor }
func (c AuthorCriteria) Value() string            { return string(c) }
func (AuthorCriteria) isSearchCriteria()          {}
func (c TitleCriteria) Category() SearchCategory  { return SearchByTitle }
func (c TitleCriteria) Value() string             { return string(c) }
func (TitleCriteria) isSearchCriteria()           {}

// NewSearchCriteria builds the criteria variant for a category and value.
// ISBN values are normalized; empty values are rejected.
func NewSearchCriteria(category, value string) (SearchCriteria, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty %s", ErrInvalidSearchCriteria, category)
	}

	switch SearchCategory(category) {
	case SearchByISBN:
		isbn := NormalizeISBN(value)
		if !IsValidISBN(isbn) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSearchCriteria, ErrInvalidISBN)
		}
		return ISBNCriteria(isbn), nil
	case SearchByAuthor:
		return AuthorCriteria(value), nil
	case SearchByTitle:
		return TitleCriteria(value), nil
	default:
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidSearchCriteria, category)
	}
}

// MatchBook applies criteria to a book the way local storage does.
func MatchBook(c SearchCriteria, b *Book) bool {
	switch crit := c.(type) {
	case ISBNCriteria:
		return b.HasISBN(string(crit))
	case AuthorCriteria:
		needle := strings.ToLower(string(crit))
		for _, a := range b.Authors {
			if strings.Contains(strings.ToLower(a), needle) {
				return true
			}
		}
		return false
	case TitleCriteria:
		return strings.Contains(strings.ToLower(b.Title), strings.ToLower(string(crit)))
	default:
		return false
	}
}
