package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderSummary is stored when a catalog record comes without a description.
const PlaceholderSummary = "No summary available."

// Book validation errors
var (
	// ErrEmptyBookID is returned when a book ID is empty or nil.
	ErrEmptyBookID = errors.New("book ID cannot be empty")

	// ErrEmptyBookTitle is returned when a book has no title.
	ErrEmptyBookTitle = errors.New("book title cannot be empty")

	// ErrInvalidISBN is returned when an identifier is not a 10 or 13 character ISBN.
	ErrInvalidISBN = errors.New("invalid ISBN")
)

// Book is a canonical catalog record. Once created it is only read; new
// provider results for the same ISBN resolve to the existing record.
type Book struct {
	ID        uuid.UUID         `json:"id"`
	ISBNs     []string          `json:"isbn"`
	Title     string            `json:"title"`
	Authors   []string          `json:"authors"`
	Images    map[string]string `json:"images"`
	Summary   string            `json:"summary"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewBook creates a Book with a fresh ID. Missing identifiers, images and
// summary are replaced by their defaults.
func NewBook(title string, authors, isbns []string, images map[string]string, summary string) (*Book, error) {
	book := &Book{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(title),
		Authors:   authors,
		ISBNs:     isbns,
		Images:    images,
		Summary:   strings.TrimSpace(summary),
		CreatedAt: time.Now().UTC(),
	}
	book.ApplyDefaults()

	if err := book.Validate(); err != nil {
		return nil, err
	}

	return book, nil
}

// ApplyDefaults fills missing optional fields and normalizes identifiers.
func (b *Book) ApplyDefaults() {
	normalized := make([]string, 0, len(b.ISBNs))
	seen := make(map[string]struct{}, len(b.ISBNs))
	for _, isbn := range b.ISBNs {
		n := NormalizeISBN(isbn)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	b.ISBNs = normalized

	if b.Authors == nil {
		b.Authors = []string{}
	}
	if b.Images == nil {
		b.Images = map[string]string{}
	}
	if b.Summary == "" {
		b.Summary = PlaceholderSummary
	}
}

// Validate checks if the Book has valid data.
func (b *Book) Validate() error {
	if b.ID == uuid.Nil {
		return ErrEmptyBookID
	}
	if strings.TrimSpace(b.Title) == "" {
		return ErrEmptyBookTitle
	}
	for _, isbn := range b.ISBNs {
		if !IsValidISBN(isbn) {
			return ErrInvalidISBN
		}
	}
	return nil
}

// HasISBN reports whether the book carries the given identifier.
func (b *Book) HasISBN(isbn string) bool {
	n := NormalizeISBN(isbn)
	for _, own := range b.ISBNs {
		if own == n {
			return true
		}
	}
	return false
}

// SameWork reports whether two books without identifiers describe the same
// work: equal titles and author lists, ignoring case and surrounding space.
// Books carrying ISBNs are matched by ISBN instead and never compare equal here.
func (b *Book) SameWork(other *Book) bool {
	if len(b.ISBNs) > 0 || len(other.ISBNs) > 0 {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(b.Title), strings.TrimSpace(other.Title)) {
		return false
	}
	if len(b.Authors) != len(other.Authors) {
		return false
	}
	for i := range b.Authors {
		if !strings.EqualFold(strings.TrimSpace(b.Authors[i]), strings.TrimSpace(other.Authors[i])) {
			return false
		}
	}
	return true
}

// NormalizeISBN strips hyphens and spaces and upper-cases a trailing check 'x'.
func NormalizeISBN(isbn string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(isbn) {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == 'x' || r == 'X':
			sb.WriteRune('X')
		case r == '-' || r == ' ':
		default:
			// Keep unexpected runes so IsValidISBN rejects them.
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// IsValidISBN checks the shape of a normalized ISBN-10 or ISBN-13.
// Check digits are not verified; provider data is not always consistent.
func IsValidISBN(isbn string) bool {
	switch len(isbn) {
	case 10:
		for i, r := range isbn {
			if r >= '0' && r <= '9' {
				continue
			}
			if r == 'X' && i == 9 {
				continue
			}
			return false
		}
		return true
	case 13:
		for _, r := range isbn {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	default:
		return false
	}
}
