package api

import (
	"time"

	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/service"
)

// AddressPayload is the postal address in user bodies.
type AddressPayload struct {
	Street string `json:"street" validate:"required"`
	City   string `json:"city"   validate:"required"`
	State  string `json:"state"  validate:"required"`
	Zip    string `json:"zip"    validate:"required"`
}

// CreateUserRequest defines the payload for POST /users.
type CreateUserRequest struct {
	FirstName   string         `json:"first_name"   validate:"required"`
	LastName    string         `json:"last_name"    validate:"required"`
	Email       string         `json:"email"        validate:"required,email"`
	Username    string         `json:"username"     validate:"required,max=64"`
	Password    string         `json:"password"     validate:"required,min=8,max=72"`
	PhoneNumber string         `json:"phone_number" validate:"required"`
	Address     AddressPayload `json:"address"      validate:"required"`
}

// UpdateUserRequest defines the payload for PUT /users/{id}. An empty
// password keeps the current one.
type UpdateUserRequest struct {
	FirstName   string         `json:"first_name"   validate:"required"`
	LastName    string         `json:"last_name"    validate:"required"`
	Email       string         `json:"email"        validate:"required,email"`
	Username    string         `json:"username"     validate:"required,max=64"`
	Password    string         `json:"password"     validate:"omitempty,min=8,max=72"`
	PhoneNumber string         `json:"phone_number" validate:"required"`
	Address     AddressPayload `json:"address"      validate:"required"`
}

// UserResponse represents a user. The password hash is never exposed.
type UserResponse struct {
	ID          string         `json:"id"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	FullName    string         `json:"full_name"`
	Email       string         `json:"email"`
	Username    string         `json:"username"`
	PhoneNumber string         `json:"phone_number"`
	Address     AddressPayload `json:"address"`
	FullAddress string         `json:"full_address"`
	MemberSince time.Time      `json:"member_since"`
	IsActive    bool           `json:"is_active"`
}

// AddBookRequest defines the payload for POST /users/{id}/books. The book is
// named by catalog id or by ISBN.
type AddBookRequest struct {
	BookID string `json:"book_id" validate:"omitempty,uuid"`
	ISBN   string `json:"isbn"`
}

// BookResponse represents a catalog record.
type BookResponse struct {
	ID      string            `json:"id"`
	ISBNs   []string          `json:"isbn"`
	Title   string            `json:"title"`
	Authors []string          `json:"authors"`
	Images  map[string]string `json:"images"`
	Summary string            `json:"summary"`
}

// LibraryEntryResponse represents one book listed in a library.
type LibraryEntryResponse struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	Book              *BookResponse `json:"book,omitempty"`
	BookID            string        `json:"book_id"`
	HasPendingRequest bool          `json:"has_pending_request"`
	AddedAt           time.Time     `json:"added_at"`
}

// CreateSwapRequest defines the payload for POST /users/{userId}/requests.
// request_from defaults to the user in the path and must match it if set.
type CreateSwapRequest struct {
	RequestFrom      string `json:"request_from"       validate:"omitempty,uuid"`
	RequestTo        string `json:"request_to"         validate:"required,uuid"`
	RequestedEntryID string `json:"requested_entry_id" validate:"required,uuid"`
	TradedEntryID    string `json:"traded_entry_id"    validate:"omitempty,uuid"`
}

// UpdateSwapRequest defines the payload for PUT /users/{userId}/requests/{reqId}.
type UpdateSwapRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted declined"`
}

// SwapRequestResponse represents a swap request.
type SwapRequestResponse struct {
	ID               string    `json:"id"`
	RequestFrom      string    `json:"request_from"`
	RequestTo        string    `json:"request_to"`
	RequestedEntryID string    `json:"requested_entry_id"`
	RequestedBookID  string    `json:"requested_book_id"`
	TradedEntryID    *string   `json:"traded_entry_id,omitempty"`
	TradedBookID     *string   `json:"traded_book_id,omitempty"`
	Status           string    `json:"status"`
	RequestDate      time.Time `json:"request_date"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SwapRequestListResponse is one page of a request listing.
type SwapRequestListResponse struct {
	Requests []SwapRequestResponse `json:"requests"`
	Total    int                   `json:"total"`
}

// SearchResponse is one page of catalog search results.
type SearchResponse struct {
	Books      []BookResponse `json:"books"`
	TotalItems int            `json:"total_items"`
	Page       int            `json:"page"`
	Source     string         `json:"source"`
}

// BookListResponse is one page of the local catalog.
type BookListResponse struct {
	Books  []BookResponse `json:"books"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (a AddressPayload) toDomain() domain.Address {
	return domain.Address{Street: a.Street, City: a.City, State: a.State, Zip: a.Zip}
}

func (req CreateUserRequest) toInput() service.UserInput {
	return service.UserInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address.toDomain(),
	}
}

func (req UpdateUserRequest) toInput() service.UserInput {
	return service.UserInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address.toDomain(),
	}
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Email:       u.Email,
		Username:    u.Username,
		PhoneNumber: u.PhoneNumber,
		Address: AddressPayload{
			Street: u.Address.Street,
			City:   u.Address.City,
			State:  u.Address.State,
			Zip:    u.Address.Zip,
		},
		FullAddress: u.FullAddress(),
		MemberSince: u.MemberSince,
		IsActive:    u.IsActive,
	}
}

func bookToResponse(b *domain.Book) BookResponse {
	return BookResponse{
		ID:      b.ID.String(),
		ISBNs:   b.ISBNs,
		Title:   b.Title,
		Authors: b.Authors,
		Images:  b.Images,
		Summary: b.Summary,
	}
}

func booksToResponse(books []*domain.Book) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, bookToResponse(b))
	}
	return out
}

func entryToResponse(e *domain.LibraryEntry) LibraryEntryResponse {
	resp := LibraryEntryResponse{
		ID:                e.ID.String(),
		UserID:            e.UserID.String(),
		BookID:            e.BookID.String(),
		HasPendingRequest: e.HasPendingRequest,
		AddedAt:           e.AddedAt,
	}
	if e.Book != nil {
		book := bookToResponse(e.Book)
		resp.Book = &book
	}
	return resp
}

func requestToResponse(req *domain.Request) SwapRequestResponse {
	resp := SwapRequestResponse{
		ID:               req.ID.String(),
		RequestFrom:      req.RequestFrom.String(),
		RequestTo:        req.RequestTo.String(),
		RequestedEntryID: req.RequestedEntryID.String(),
		RequestedBookID:  req.RequestedBookID.String(),
		Status:           string(req.Status),
		RequestDate:      req.RequestDate,
		UpdatedAt:        req.UpdatedAt,
	}
	if req.TradedEntryID != nil {
		id := req.TradedEntryID.String()
		resp.TradedEntryID = &id
	}
	if req.TradedBookID != nil {
		id := req.TradedBookID.String()
		resp.TradedBookID = &id
	}
	return resp
}
