package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/api/shared"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/platform/logger"
	"github.com/imhighyat/book-swap-api/internal/service"
)

// UserHandler handles user account and library HTTP requests.
type UserHandler struct {
	userService    service.UserService
	libraryService service.LibraryService
	logger         *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(
	userService service.UserService,
	libraryService service.LibraryService,
	logger *slog.Logger,
) *UserHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for UserHandler")
	}

	return &UserHandler{
		userService:    userService,
		libraryService: libraryService,
		logger:         logger.With(slog.String("component", "user_handler")),
	}
}

// ListUsers handles GET /users?active=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if err := checkQueryKeys(r, "active"); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	active, err := queryBool(r, "active")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	users, err := h.userService.List(r.Context(), active)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userToResponse(u))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetUser handles GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	user, err := h.userService.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.Create(r.Context(), req.toInput())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, userToResponse(user))
}

// UpdateUser handles PUT /users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var req UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.Update(r.Context(), id, req.toInput())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// DeactivateUser handles DELETE /users/{id}. The account is soft-disabled.
func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	user, err := h.userService.Deactivate(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Info("user deactivated", slog.String("user_id", id.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// ListBooks handles GET /users/{id}/books?available=
func (h *UserHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if err := checkQueryKeys(r, "available"); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	available, err := queryBool(r, "available")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	entries, err := h.libraryService.List(r.Context(), id, domain.LibraryFilter{Available: available})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	resp := make([]LibraryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, entryToResponse(e))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// AddBook handles POST /users/{id}/books
func (h *UserHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var req AddBookRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	input := service.AddEntryInput{ISBN: req.ISBN}
	if req.BookID != "" {
		// Already checked by the uuid tag.
		input.BookID = uuid.MustParse(req.BookID)
	}

	entry, err := h.libraryService.Add(r.Context(), id, input)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, entryToResponse(entry))
}

// RemoveBook handles DELETE /users/{id}/books/{entryId}
func (h *UserHandler) RemoveBook(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	entryID, err := getPathUUID(r, "entryId")
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	if err := h.libraryService.Remove(r.Context(), id, entryID); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
