package googlebooks

import (
	"fmt"

	"github.com/imhighyat/book-swap-api/internal/catalog"
	"github.com/imhighyat/book-swap-api/internal/domain"
)

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	Description         string               `json:"description"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
	ImageLinks          map[string]string    `json:"imageLinks"`
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

func decodeVolumes(body []byte) (*catalog.Result, error) {
	var resp volumesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrInvalidResponse, err)
	}

	result := &catalog.Result{
		Books:      make([]*domain.Book, 0, len(resp.Items)),
		TotalItems: resp.TotalItems,
	}
	for _, item := range resp.Items {
		book, ok := item.VolumeInfo.toBook()
		if !ok {
			continue
		}
		result.Books = append(result.Books, book)
	}
	return result, nil
}

// toBook normalizes a volume. Volumes without a title are skipped; only
// ISBN_10 and ISBN_13 identifiers are kept.
func (v volumeInfo) toBook() (*domain.Book, bool) {
	var isbns []string
	for _, id := range v.IndustryIdentifiers {
		if id.Type != "ISBN_10" && id.Type != "ISBN_13" {
			continue
		}
		if n := domain.NormalizeISBN(id.Identifier); domain.IsValidISBN(n) {
			isbns = append(isbns, n)
		}
	}

	book, err := domain.NewBook(v.Title, v.Authors, isbns, v.ImageLinks, v.Description)
	if err != nil {
		return nil, false
	}
	return book, true
}
