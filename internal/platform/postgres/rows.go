package postgres

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// entryWithBookSelect joins each library entry with its catalog record.
const entryWithBookSelect = `
	SELECT e.id, e.user_id, e.book_id, e.has_pending_request, e.position, e.version,
	       e.added_at, e.updated_at,
	       b.id, b.title, to_jsonb(b.authors), b.images, b.summary, b.created_at,
	       to_jsonb(ARRAY(SELECT bi.isbn FROM book_isbns bi WHERE bi.book_id = b.id ORDER BY bi.ordinal))
	FROM library_entries e
	JOIN books b ON b.id = e.book_id
`

const userColumns = `id, first_name, last_name, email, username, password_hash, phone_number,
	street, city, state, zip, is_active, member_since, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.PhoneNumber,
		&u.Address.Street,
		&u.Address.City,
		&u.Address.State,
		&u.Address.Zip,
		&u.IsActive,
		&u.MemberSince,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// bookJSON holds the JSON-encoded columns of a book row.
type bookJSON struct {
	authors []byte
	images  []byte
	isbns   []byte
}

func (j bookJSON) decode(b *domain.Book) error {
	if err := json.Unmarshal(j.authors, &b.Authors); err != nil {
		return fmt.Errorf("failed to decode authors: %w", err)
	}
	if err := json.Unmarshal(j.images, &b.Images); err != nil {
		return fmt.Errorf("failed to decode images: %w", err)
	}
	if err := json.Unmarshal(j.isbns, &b.ISBNs); err != nil {
		return fmt.Errorf("failed to decode isbns: %w", err)
	}
	b.ApplyDefaults()
	return nil
}

func scanBook(row rowScanner) (*domain.Book, error) {
	var b domain.Book
	var raw bookJSON
	if err := row.Scan(&b.ID, &b.Title, &raw.authors, &raw.images, &b.Summary, &b.CreatedAt, &raw.isbns); err != nil {
		return nil, err
	}
	if err := raw.decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanEntryWithBook(row rowScanner) (*domain.LibraryEntry, error) {
	var e domain.LibraryEntry
	var b domain.Book
	var raw bookJSON
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.BookID,
		&e.HasPendingRequest,
		&e.Position,
		&e.Version,
		&e.AddedAt,
		&e.UpdatedAt,
		&b.ID,
		&b.Title,
		&raw.authors,
		&raw.images,
		&b.Summary,
		&b.CreatedAt,
		&raw.isbns,
	)
	if err != nil {
		return nil, err
	}
	if err := raw.decode(&b); err != nil {
		return nil, err
	}
	e.Book = &b
	return &e, nil
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var r domain.Request
	var tradedEntry, tradedBook uuid.NullUUID
	var status string
	err := row.Scan(
		&r.ID,
		&r.RequestFrom,
		&r.RequestTo,
		&r.RequestedEntryID,
		&r.RequestedBookID,
		&tradedEntry,
		&tradedBook,
		&status,
		&r.Settled,
		&r.Version,
		&r.RequestDate,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = domain.RequestStatus(status)
	if tradedEntry.Valid {
		id := tradedEntry.UUID
		r.TradedEntryID = &id
	}
	if tradedBook.Valid {
		id := tradedBook.UUID
		r.TradedBookID = &id
	}
	return &r, nil
}

// nullUUID converts an optional id into a driver value.
func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
